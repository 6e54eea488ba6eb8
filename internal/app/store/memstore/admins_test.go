package memstore_test

import (
	"context"
	"errors"
	"testing"

	adminstore "github.com/dalemusser/chimeo/internal/app/store/admins"
	"github.com/dalemusser/chimeo/internal/app/store/memstore"
	"github.com/dalemusser/chimeo/internal/domain/models"
)

func TestAdmins_Authenticate(t *testing.T) {
	ctx := context.Background()
	admins := memstore.New().Admins

	created, err := admins.EnsureBootstrap(ctx, "Root@Chimeo.test", "correct horse")
	if err != nil || !created {
		t.Fatalf("EnsureBootstrap: created=%v err=%v", created, err)
	}
	if again, _ := admins.EnsureBootstrap(ctx, "root@chimeo.test", "other"); again {
		t.Error("second bootstrap should not create")
	}

	if _, err := admins.Authenticate(ctx, "root@chimeo.test", "correct horse"); err != nil {
		t.Errorf("Authenticate: %v", err)
	}
	if _, err := admins.Authenticate(ctx, "root@chimeo.test", "other"); !errors.Is(err, adminstore.ErrBadPassword) {
		t.Errorf("wrong password: got %v", err)
	}
	if _, err := admins.Authenticate(ctx, "nobody@chimeo.test", "x"); !errors.Is(err, adminstore.ErrBadPassword) {
		t.Errorf("unknown email: got %v", err)
	}

	admins.SetStatus("root@chimeo.test", models.AdminDisabled)
	if _, err := admins.Authenticate(ctx, "root@chimeo.test", "correct horse"); !errors.Is(err, adminstore.ErrDisabled) {
		t.Errorf("disabled: got %v", err)
	}
}
