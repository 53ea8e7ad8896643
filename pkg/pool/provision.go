package pool

import (
	"context"

	"heliox-hq/charon/pkg/pool/storage"
)

// Provisioner supplies a brand-new credential when allocation finds the
// pool empty. Implementations typically drive an external signup flow;
// the pool only requires that the returned record is insertable.
type Provisioner interface {
	Provision(ctx context.Context) (*storage.Record, error)
}

// ProvisionerFunc adapts a function to the Provisioner interface.
type ProvisionerFunc func(ctx context.Context) (*storage.Record, error)

// Provision implements Provisioner.
func (f ProvisionerFunc) Provision(ctx context.Context) (*storage.Record, error) {
	return f(ctx)
}
