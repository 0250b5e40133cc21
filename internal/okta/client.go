package okta

import "context"

// BatchFunc is invoked once per page of records. Returning an error aborts the
// stream and propagates out of the List call. The stream is finite and not
// restartable mid-flight; memory stays bounded to one batch.
type BatchFunc[R any] func(ctx context.Context, batch []R) error

// Client streams paginated entity batches from the identity provider. Each
// List method owns pagination: it invokes the callback repeatedly until the
// source is exhausted and returns only after all pages are processed.
// Authentication failures encountered while paging are accumulated rather than
// raised, so a run can inspect them after all entity types complete.
type Client interface {
	ListUsers(ctx context.Context, fn BatchFunc[UserRecord]) error
	ListGroups(ctx context.Context, fn BatchFunc[GroupRecord]) error
	ListApplications(ctx context.Context, fn BatchFunc[ApplicationRecord]) error
	ListPolicies(ctx context.Context, fn BatchFunc[PolicyRecord]) error
	ListDevices(ctx context.Context, fn BatchFunc[DeviceRecord]) error

	// AuthErrors returns authentication failures accumulated since the client
	// was constructed, in occurrence order.
	AuthErrors() []string
}
