package ports

import "github.com/getodk/briefcase-sub006/internal/domain"

// FormMetadataStore persists per-form metadata, including the cursor record.
type FormMetadataStore interface {
	Get(key domain.FormKey) (domain.FormMetadata, bool, error)
	Put(meta domain.FormMetadata) error
	List() ([]domain.FormMetadata, error)
}
