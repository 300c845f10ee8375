// Package gmail provides a wire-level client for the Gmail REST API.
//
// The package covers the read side of a mailbox:
//   - Retrying transport (bounded exponential backoff on transient statuses)
//   - Token pagination over list endpoints
//   - Message listing, full retrieval, profile cursor and history walking
//   - Payload tree reductions: body extraction, attachment stripping with
//     metadata preservation, normalized records and LLM projections
//
// The client talks directly to the REST endpoints rather than through a
// generated SDK so that retry, pagination and payload semantics stay in
// this package. Authentication is the caller's concern: NewClient accepts
// any *http.Client, typically one produced by the google package with
// OAuth credentials attached.
//
// Example usage:
//
//	client := gmail.NewClient(httpClient)
//
//	// Stream projections of the newest two matching messages
//	err := client.ForeachLlmProjection(ctx, "in:inbox", nil, 2, true,
//		func(p *gmail.LlmProjection) error {
//			fmt.Println(p.Subject, p.BodyChars)
//			return nil
//		})
//	if err != nil {
//		log.Fatal(err)
//	}
package gmail
