package services

import (
	"errors"
	"testing"

	"github.com/filelinkpro/filelink/internal/database"
	"github.com/filelinkpro/filelink/internal/models"
)

func TestRegister_AndAuthenticate(t *testing.T) {
	setupDB(t)
	svc := NewUserService()

	user, err := svc.Register("  Alice@Example.COM ", "hunter22", "Alice Smith")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Errorf("email = %q, want normalized lowercase", user.Email)
	}
	if user.PasswordHash == "hunter22" {
		t.Error("password stored in the clear")
	}

	got, err := svc.Authenticate("alice@example.com", "hunter22")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("authenticated user %d, want %d", got.ID, user.ID)
	}
	if got.LastLogin == nil {
		t.Error("last login not stamped")
	}

	if _, err := svc.Authenticate("alice@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: got %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Authenticate("nobody@example.com", "hunter22"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email: got %v, want ErrInvalidCredentials", err)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	setupDB(t)
	svc := NewUserService()

	if _, err := svc.Register("dup@example.com", "password1", "First"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := svc.Register("DUP@example.com", "password2", "Second"); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("got %v, want ErrEmailTaken", err)
	}
}

func TestAuthenticate_DisabledAccount(t *testing.T) {
	setupDB(t)
	svc := NewUserService()

	user, err := svc.Register("off@example.com", "password1", "Off Line")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := database.DB.Model(user).Update("is_active", false).Error; err != nil {
		t.Fatalf("disable: %v", err)
	}

	if _, err := svc.Authenticate("off@example.com", "password1"); !errors.Is(err, ErrAccountDisabled) {
		t.Errorf("got %v, want ErrAccountDisabled", err)
	}
	if _, err := svc.GetByID(user.ID); !errors.Is(err, ErrAccountDisabled) {
		t.Errorf("GetByID: got %v, want ErrAccountDisabled", err)
	}
}

func TestRecalculateStorage_RepairsDrift(t *testing.T) {
	setupDB(t)
	svc := NewUserService()
	user := createUser(t, "drift@example.com", false)

	for _, size := range []int64{100, 250} {
		file := &models.File{
			OriginalName: "f.bin",
			StoredName:   GenerateStoredName("f.bin"),
			FileSize:     size,
		}
		if err := database.DB.Create(file).Error; err != nil {
			t.Fatalf("create file: %v", err)
		}
		if err := database.DB.Create(&models.UserFile{UserID: user.ID, FileID: file.ID}).Error; err != nil {
			t.Fatalf("create ownership: %v", err)
		}
	}
	if err := database.DB.Model(user).Update("storage_used", 9999).Error; err != nil {
		t.Fatalf("seed drift: %v", err)
	}

	total, err := svc.RecalculateStorage(user)
	if err != nil {
		t.Fatalf("RecalculateStorage: %v", err)
	}
	if total != 350 {
		t.Errorf("recalculated total = %d, want 350", total)
	}
	if user.StorageUsed != 350 {
		t.Errorf("user struct not updated: %d", user.StorageUsed)
	}
}
