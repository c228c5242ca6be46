package selection

import "context"

type subjectKey struct{}

// WithSubject attaches the sticky-routing subject identifier (user id,
// tenant id, session key) to the context. Sticky experiments read it per
// call; a call without a subject routes to the default trial.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey{}, subject)
}

// SubjectFrom returns the subject identifier attached by WithSubject.
func SubjectFrom(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(subjectKey{}).(string)
	return s, ok && s != ""
}
