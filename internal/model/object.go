package model

import (
	"fmt"
	"time"
)

// IDType labels the naming scheme of a raw identifier.
type IDType string

const (
	IDTypeGaia    IDType = "gaia"
	IDTypeTIC     IDType = "tic"
	IDTypeSimbad  IDType = "simbad"
	IDTypeUnknown IDType = "unknown"
)

// ObjectStatus tracks one object through enrichment.
type ObjectStatus string

const (
	ObjectPending    ObjectStatus = "pending"
	ObjectProcessing ObjectStatus = "processing"
	ObjectComplete   ObjectStatus = "complete"
	ObjectFailed     ObjectStatus = "failed"
)

func (s ObjectStatus) String() string { return string(s) }

// Terminal reports whether the object reached complete or failed.
func (s ObjectStatus) Terminal() bool {
	return s == ObjectComplete || s == ObjectFailed
}

// ValidateTransition checks that moving from s to target only ever advances.
func (s ObjectStatus) ValidateTransition(target ObjectStatus) error {
	switch {
	case s == ObjectPending && (target == ObjectProcessing || target == ObjectFailed):
		return nil
	case s == ObjectProcessing && target.Terminal():
		return nil
	}
	return fmt.Errorf("%w: object %s -> %s", ErrInvalidTransition, s, target)
}

// SourceStatus is the outcome of querying one catalog for one object.
type SourceStatus string

const (
	SourcePending  SourceStatus = "pending"
	SourceQuerying SourceStatus = "querying"
	SourceSuccess  SourceStatus = "success"
	SourceFailed   SourceStatus = "failed"
	SourceNoData   SourceStatus = "no-data"
)

// SourceResult records what a single catalog returned.
type SourceResult struct {
	SourceName string       `json:"sourceName"`
	Status     SourceStatus `json:"status"`
	Timestamp  *time.Time   `json:"timestamp,omitempty"`
}

// LightCurvePoint is one normalized flux sample.
type LightCurvePoint struct {
	Time float64 `json:"time"`
	Flux float64 `json:"flux"`
}

// Enrichment holds the catalog and physical fields resolved for an object.
// Pointer fields stay nil when the catalogs had nothing to say.
type Enrichment struct {
	PrimaryName    *string           `json:"primaryName,omitempty"`
	ObjectType     *string           `json:"objectType,omitempty"`
	RA             *float64          `json:"ra,omitempty"`
	Dec            *float64          `json:"dec,omitempty"`
	Magnitude      *float64          `json:"magnitude,omitempty"`
	MagBand        *string           `json:"magBand,omitempty"`
	Distance       *float64          `json:"distance,omitempty"`
	SpectralType   *string           `json:"spectralType,omitempty"`
	Temperature    *float64          `json:"temperature,omitempty"`
	Mass           *float64          `json:"mass,omitempty"`
	Radius         *float64          `json:"radius,omitempty"`
	Sources        []SourceResult    `json:"sources"`
	Tags           []string          `json:"tags"`
	LightCurveData []LightCurvePoint `json:"lightCurveData,omitempty"`
}

// AstroObject is one identifier's tracked enrichment record within a session.
// The embedded Enrichment is flattened into the JSON document.
type AstroObject struct {
	ID           string       `json:"id"`
	SessionID    string       `json:"sessionId"`
	Seq          int          `json:"seq"`
	InputName    string       `json:"inputName"`
	DetectedType IDType       `json:"detectedType"`
	Status       ObjectStatus `json:"status"`
	Enrichment
	SummaryText *string   `json:"summaryText,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// DisplayName prefers the resolved primary name over the raw input.
func (o *AstroObject) DisplayName() string {
	if o.PrimaryName != nil && *o.PrimaryName != "" {
		return *o.PrimaryName
	}
	return o.InputName
}

// ObjectPatch is a partial update. Enrichment, when set, replaces every
// enrichment field at once.
type ObjectPatch struct {
	Status      *ObjectStatus
	Enrichment  *Enrichment
	SummaryText *string
	Error       *string
}

// Ptr returns a pointer to v. Handy for optional fields and patches.
func Ptr[T any](v T) *T {
	return &v
}
