package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/visionvault-backend/internal/repos"
	"github.com/yungbote/visionvault-backend/internal/requestdata"
	"github.com/yungbote/visionvault-backend/internal/types"
)

func newAuthFixture(t *testing.T) (*gorm.DB, AuthService) {
	t.Helper()
	db := openTestDB(t)
	log := testLogger(t)
	auth := NewAuthService(
		db,
		log,
		repos.NewUserRepo(db, log),
		repos.NewUserTokenRepo(db, log),
		"test-secret",
		time.Hour,
		24*time.Hour,
	)
	return db, auth
}

func TestRegisterLoginAndTokenContext(t *testing.T) {
	_, auth := newAuthFixture(t)
	ctx := context.Background()

	user := &types.User{Email: "Ada@Example.com ", Password: "hunter22", FirstName: "Ada"}
	if err := auth.RegisterUser(ctx, user); err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	if user.Email != "ada@example.com" {
		t.Fatalf("email was not normalized: %q", user.Email)
	}
	if user.Password == "hunter22" {
		t.Fatalf("password stored in plaintext")
	}

	accessToken, refreshToken, err := auth.LoginUser(ctx, "ada@example.com", "hunter22")
	if err != nil {
		t.Fatalf("LoginUser: %v", err)
	}
	if accessToken == "" || refreshToken == "" {
		t.Fatalf("login returned empty tokens")
	}

	authedCtx, err := auth.SetContextFromToken(ctx, accessToken)
	if err != nil {
		t.Fatalf("SetContextFromToken: %v", err)
	}
	rd := requestdata.GetRequestData(authedCtx)
	if rd == nil || rd.UserID != user.ID {
		t.Fatalf("context does not carry the logged-in user")
	}
	if rd.RefreshToken != refreshToken {
		t.Fatalf("context refresh token mismatch")
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	_, auth := newAuthFixture(t)
	ctx := context.Background()

	if err := auth.RegisterUser(ctx, &types.User{Email: "bob@example.com", Password: "correct"}); err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	if _, _, err := auth.LoginUser(ctx, "bob@example.com", "wrong"); err == nil {
		t.Fatalf("wrong password must fail")
	}
	if _, _, err := auth.LoginUser(ctx, "nobody@example.com", "correct"); err == nil {
		t.Fatalf("unknown email must fail")
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	_, auth := newAuthFixture(t)
	ctx := context.Background()

	if err := auth.RegisterUser(ctx, &types.User{Email: "dup@example.com", Password: "pw"}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := auth.RegisterUser(ctx, &types.User{Email: "dup@example.com", Password: "pw"}); err == nil {
		t.Fatalf("duplicate email must fail")
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	db, auth := newAuthFixture(t)
	ctx := context.Background()

	if err := auth.RegisterUser(ctx, &types.User{Email: "eve@example.com", Password: "pw"}); err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	accessToken, refreshToken, err := auth.LoginUser(ctx, "eve@example.com", "pw")
	if err != nil {
		t.Fatalf("LoginUser: %v", err)
	}

	authedCtx, err := auth.SetContextFromToken(ctx, accessToken)
	if err != nil {
		t.Fatalf("SetContextFromToken: %v", err)
	}
	newAccess, newRefresh, err := auth.RefreshUser(authedCtx)
	if err != nil {
		t.Fatalf("RefreshUser: %v", err)
	}
	if newRefresh == refreshToken {
		t.Fatalf("refresh token was not rotated")
	}
	if newAccess == "" {
		t.Fatalf("refresh returned empty access token")
	}
	// The refresh runs within the same second as the login, so the
	// rotated token must still differ from the one it replaces.
	if newAccess == accessToken {
		t.Fatalf("access token was not rotated")
	}

	var count int64
	db.Model(&types.UserToken{}).Where("refresh_token = ?", refreshToken).Count(&count)
	if count != 0 {
		t.Fatalf("old refresh token still usable")
	}
}

func TestLogoutDeletesToken(t *testing.T) {
	db, auth := newAuthFixture(t)
	ctx := context.Background()

	if err := auth.RegisterUser(ctx, &types.User{Email: "sam@example.com", Password: "pw"}); err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	accessToken, _, err := auth.LoginUser(ctx, "sam@example.com", "pw")
	if err != nil {
		t.Fatalf("LoginUser: %v", err)
	}
	authedCtx, err := auth.SetContextFromToken(ctx, accessToken)
	if err != nil {
		t.Fatalf("SetContextFromToken: %v", err)
	}
	if err := auth.LogoutUser(authedCtx); err != nil {
		t.Fatalf("LogoutUser: %v", err)
	}

	var count int64
	db.Model(&types.UserToken{}).Count(&count)
	if count != 0 {
		t.Fatalf("logout left %d tokens behind", count)
	}
}

func TestBackToBackLoginsMintDistinctTokens(t *testing.T) {
	_, auth := newAuthFixture(t)
	ctx := context.Background()

	if err := auth.RegisterUser(ctx, &types.User{Email: "kim@example.com", Password: "pw"}); err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	first, _, err := auth.LoginUser(ctx, "kim@example.com", "pw")
	if err != nil {
		t.Fatalf("first login: %v", err)
	}
	second, _, err := auth.LoginUser(ctx, "kim@example.com", "pw")
	if err != nil {
		t.Fatalf("second login in the same second: %v", err)
	}
	if first == second {
		t.Fatalf("logins in the same second minted identical access tokens")
	}
}

func TestSetContextFromTokenRejectsForgedToken(t *testing.T) {
	_, auth := newAuthFixture(t)

	forged := uuid.New().String()
	if _, err := auth.SetContextFromToken(context.Background(), forged); err == nil {
		t.Fatalf("garbage token must be rejected")
	}
}
