package labs

import (
	"context"
	"strings"

	"github.com/biostack-engine/internal/domain"
)

// providerCodes maps per-provider test codes onto panel marker codes.
// Codes absent here pass through lowercased; the normalizer's alias
// table gets the final say.
var providerCodes = map[string]map[string]string{
	"questlike": {
		"FERR":   "ferritin",
		"CRP-HS": "crp",
		"ALT-SG": "alt",
		"AST-SG": "ast",
		"HCY":    "homocysteine",
		"VITD25": "vitamin_d",
		"TSH3":   "tsh",
		"FT4":    "free_t4",
		"HBA1C":  "hba1c",
	},
	"labcorplike": {
		"001810": "ferritin",
		"120766": "crp",
		"001545": "alt",
		"001123": "ast",
		"706994": "homocysteine",
		"081950": "vitamin_d",
		"004259": "tsh",
		"019745": "free_t4",
		"001453": "hba1c",
	},
}

// Adapter converts provider panel documents into pipeline panel entries.
type Adapter struct {
	provider string
}

// NewAdapter creates an adapter for a named provider. Unknown provider
// names fall back to pass-through code mapping.
func NewAdapter(provider string) *Adapter {
	return &Adapter{provider: strings.ToLower(strings.TrimSpace(provider))}
}

// Panel converts a provider document into panel entries. Results with an
// empty value are dropped; everything else is forwarded and left for the
// normalizer to accept or report as unknown.
func (a *Adapter) Panel(doc *PanelDocument) []domain.PanelEntry {
	if doc == nil {
		return nil
	}

	codes := providerCodes[a.provider]
	entries := make([]domain.PanelEntry, 0, len(doc.Results))
	for _, result := range doc.Results {
		value := strings.TrimSpace(result.Value)
		if value == "" {
			continue
		}

		code := strings.ToLower(strings.TrimSpace(result.TestCode))
		if mapped, ok := codes[strings.ToUpper(result.TestCode)]; ok {
			code = mapped
		}

		entries = append(entries, domain.PanelEntry{
			Code:  code,
			Value: domain.MarkerValue(value),
			Unit:  result.Unit,
		})
	}
	return entries
}

// Service pairs a provider client with its adapter so callers get
// canonical panel entries straight from an accession id.
type Service struct {
	client  *Client
	adapter *Adapter
}

// NewService creates a panel-fetching service.
func NewService(client *Client, adapter *Adapter) *Service {
	return &Service{client: client, adapter: adapter}
}

// Panel fetches the accession's panel document and maps it into
// canonical entries.
func (s *Service) Panel(ctx context.Context, accessionID string) ([]domain.PanelEntry, error) {
	doc, err := s.client.FetchPanel(ctx, accessionID)
	if err != nil {
		return nil, err
	}
	return s.adapter.Panel(doc), nil
}
