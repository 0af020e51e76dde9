package user

import (
	"context"
	"testing"

	"github.com/messengermaksym/diploma-project/core"
)

// uniquenessRecorder captures the context the uniqueness query runs under.
type uniquenessRecorder struct {
	Repository
	gotCtx context.Context
}

func (r *uniquenessRecorder) CheckUsernameUniqueness(ctx context.Context, uname, email string, exclUsers []User, exec ...core.DBExecutor) error {
	r.gotCtx = ctx
	return nil
}

func TestService_CheckUniqueness_threadsContext(t *testing.T) {
	repo := &uniquenessRecorder{}
	svc := NewService(nil, repo, nil, core.NewTestConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := svc.CheckUniqueness(ctx, "hero", "hero@test.cd"); err != nil {
		t.Fatalf("CheckUniqueness() error = %v", err)
	}
	if repo.gotCtx != ctx {
		t.Error("uniqueness query did not run under the caller's context")
	}
	cancel()
	if repo.gotCtx.Err() != context.Canceled {
		t.Error("cancellation does not reach the uniqueness query's context")
	}
}
