package model

import "time"

// Record is a fetched page waiting to be written to the document store.
type Record struct {
	// ID is the canonical URL key; the store uses it as the document id.
	ID string `json:"id" bson:"_id"`

	// Source is the raw page content.
	Source []byte `json:"source" bson:"source"`

	// Site is the authority of the page.
	Site string `json:"site" bson:"site"`

	// StatusCode is the HTTP status of the response.
	StatusCode int `json:"status_code" bson:"status_code"`

	// ContentType is the media type of the response.
	ContentType string `json:"content_type,omitempty" bson:"content_type,omitempty"`

	// FetchedAt is when the response was received.
	FetchedAt time.Time `json:"fetched_at" bson:"fetched_at"`

	// Session identifies the crawl session that produced the record.
	Session string `json:"session,omitempty" bson:"session,omitempty"`
}

// NewRecord builds the archive record for a fetch result.
func NewRecord(result *FetchResult, session string) Record {
	return Record{
		ID:          result.URL.Key,
		Source:      result.Body,
		Site:        result.URL.Host(),
		StatusCode:  result.StatusCode,
		ContentType: result.ContentType,
		FetchedAt:   result.FetchedAt,
		Session:     session,
	}
}

// RecordError reports a single record the store refused within a batch.
type RecordError struct {
	// Index is the position of the record in the submitted batch.
	Index int

	// ID is the id of the refused record.
	ID string

	// Err describes why the record was refused.
	Err error
}

// Error implements the error interface.
func (e RecordError) Error() string {
	if e.Err == nil {
		return "record " + e.ID + " rejected"
	}
	return "record " + e.ID + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e RecordError) Unwrap() error {
	return e.Err
}
