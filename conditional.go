package cataloguesync

import (
	"github.com/always-cache/catalogue-sync/catalogue"
	"github.com/always-cache/catalogue-sync/pkg/etag"
)

// Result is the outcome of evaluating a conditional catalogue request.
// Exactly one of the two shapes applies: a not-modified result carries
// only the ETag, a full result carries the snapshot as well.
type Result struct {
	NotModified bool
	ETag        string
	// Catalogue is the snapshot to serialize for a full result.
	// It is nil when NotModified is set.
	Catalogue *catalogue.Catalogue
}

// Evaluate decides between a full response and a not-modified response
// for one snapshot and one client-presented validator.
//
// The caller passes the snapshot it read from the store; the ETag in
// the result always belongs to that same snapshot. A malformed
// validator is treated exactly like an absent one and never causes an
// error.
func Evaluate(snapshot *catalogue.Catalogue, clientValidator string) Result {
	currentToken := etag.FromVersion(snapshot.Version)
	if etag.Match(clientValidator, currentToken) {
		return Result{NotModified: true, ETag: currentToken}
	}
	return Result{ETag: currentToken, Catalogue: snapshot}
}
