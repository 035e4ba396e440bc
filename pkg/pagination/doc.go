// Package pagination walks offset-paginated Marvel API collections.
//
// Marvel responses wrap results in a data container carrying offset, limit,
// total and count. This package parses that envelope, decides the next offset
// and drives a sequential fetch loop that yields each page unmodified.
//
// Example usage:
//
//	walker := pagination.NewWalker(stream, pagination.DefaultPolicy())
//	pages, err := walker.Walk(ctx, func(page pagination.Page) error {
//		return emitter.EmitRecord("comics", page.Raw)
//	})
//
// The walker:
//   - Issues the first request without an offset
//   - Advances the offset by the returned limit
//   - Stops once the offset reaches the policy cap or the upstream total
//   - Fetches one page at a time; the next request waits for the previous page
//   - Aborts on the first fetch, parse or yield error
package pagination
