package businessflow

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/viewiq/app/dto"
	"github.com/amirphl/viewiq/app/services"
	"github.com/amirphl/viewiq/models"
	"github.com/amirphl/viewiq/repository"
	"github.com/amirphl/viewiq/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeUserRepo struct {
	repository.UserRepository
	mu     sync.Mutex
	nextID uint
	rows   map[uint]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{rows: make(map[uint]*models.User)}
}

func (r *fakeUserRepo) add(u *models.User) *models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	u.ID = r.nextID
	r.rows[u.ID] = u
	return u
}

func (r *fakeUserRepo) ByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.rows {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			return u, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) ByIDWithRoles(_ context.Context, id uint) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[id], nil
}

func (r *fakeUserRepo) Save(ctx context.Context, u *models.User) error {
	if existing, _ := r.ByEmail(ctx, u.Email); existing != nil {
		return repository.ErrDuplicate
	}
	r.add(u)
	return nil
}

func (r *fakeUserRepo) Update(context.Context, *models.User) error { return nil }

func (r *fakeUserRepo) ReplaceRoles(_ context.Context, u *models.User, roles []*models.Role) error {
	u.Roles = u.Roles[:0]
	for _, role := range roles {
		u.Roles = append(u.Roles, *role)
	}
	return nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rows[id]
	delete(r.rows, id)
	return ok, nil
}

func (r *fakeUserRepo) TouchLastLogin(context.Context, uint, time.Time) error { return nil }

func (r *fakeUserRepo) matching(filter models.UserFilter) []*models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.User
	for _, u := range r.rows {
		if filter.IsActive != nil && u.IsActive != *filter.IsActive {
			continue
		}
		if filter.Search != nil && !strings.Contains(strings.ToLower(u.Email), strings.ToLower(*filter.Search)) {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *fakeUserRepo) ByFilter(_ context.Context, filter models.UserFilter, _ string, limit, offset int) ([]*models.User, error) {
	rows := r.matching(filter)
	if offset >= len(rows) {
		return nil, nil
	}
	rows = rows[offset:]
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (r *fakeUserRepo) Count(_ context.Context, filter models.UserFilter) (int64, error) {
	return int64(len(r.matching(filter))), nil
}

type fakeOTPRepo struct {
	repository.OTPVerificationRepository
	nextID uint
	rows   []*models.OTPVerification
}

func (r *fakeOTPRepo) Save(_ context.Context, otp *models.OTPVerification) error {
	r.nextID++
	otp.ID = r.nextID
	r.rows = append(r.rows, otp)
	return nil
}

func (r *fakeOTPRepo) ByCorrelationID(_ context.Context, id uuid.UUID) (*models.OTPVerification, error) {
	for _, otp := range r.rows {
		if otp.CorrelationID == id {
			copied := *otp
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeOTPRepo) ExpirePending(_ context.Context, userID uint, purpose string) (int64, error) {
	var n int64
	for _, otp := range r.rows {
		if otp.UserID == userID && otp.Purpose == purpose && otp.Status == models.OTPStatusPending {
			otp.Status = models.OTPStatusExpired
			n++
		}
	}
	return n, nil
}

func (r *fakeOTPRepo) RecordFailedAttempt(_ context.Context, id uint) (int, error) {
	for _, otp := range r.rows {
		if otp.ID == id && otp.Status == models.OTPStatusPending {
			otp.AttemptsCount++
			return otp.AttemptsCount, nil
		}
	}
	return 0, nil
}

func (r *fakeOTPRepo) Transition(_ context.Context, id uint, from, to string, at time.Time) (bool, error) {
	for _, otp := range r.rows {
		if otp.ID == id && otp.Status == from {
			otp.Status = to
			if to == models.OTPStatusUsed {
				otp.VerifiedAt = &at
			}
			return true, nil
		}
	}
	return false, nil
}

func (n *fakeNotifier) SendLoginCode(_ context.Context, email, code string, _ time.Duration) error {
	n.sent = append(n.sent, sentNotification{email: email, eventType: "login_code", message: code})
	return nil
}

type fakeRoleRepo struct {
	repository.RoleRepository
	nextID uint
	rows   []*models.Role
}

func newFakeRoleRepo() *fakeRoleRepo {
	r := &fakeRoleRepo{}
	user := &models.Role{Name: models.RoleNameUser}
	user.SetCapabilities([]models.Capability{models.CapabilityCTLRead, models.CapabilityCTLCreate})
	_ = r.Save(context.Background(), user)
	return r
}

func (r *fakeRoleRepo) ByName(_ context.Context, name string) (*models.Role, error) {
	for _, role := range r.rows {
		if role.Name == name {
			return role, nil
		}
	}
	return nil, nil
}

func (r *fakeRoleRepo) ByID(_ context.Context, id uint) (*models.Role, error) {
	for _, role := range r.rows {
		if role.ID == id {
			return role, nil
		}
	}
	return nil, nil
}

func (r *fakeRoleRepo) ByFilter(_ context.Context, filter models.RoleFilter, _ string, _, _ int) ([]*models.Role, error) {
	if len(filter.IDs) == 0 {
		return r.rows, nil
	}
	var out []*models.Role
	for _, role := range r.rows {
		for _, id := range filter.IDs {
			if role.ID == id {
				out = append(out, role)
			}
		}
	}
	return out, nil
}

func (r *fakeRoleRepo) Save(ctx context.Context, role *models.Role) error {
	if existing, _ := r.ByName(ctx, role.Name); existing != nil {
		return repository.ErrDuplicate
	}
	r.nextID++
	role.ID = r.nextID
	r.rows = append(r.rows, role)
	return nil
}

func (r *fakeRoleRepo) Update(context.Context, *models.Role) error { return nil }

func (r *fakeRoleRepo) Delete(_ context.Context, id uint) (bool, error) {
	for i, role := range r.rows {
		if role.ID == id {
			r.rows = append(r.rows[:i], r.rows[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

var errUnknownToken = errors.New("unknown token")

// fakeTokens issues opaque tokens and remembers their claims
type fakeTokens struct {
	mu     sync.Mutex
	claims map[string]*services.TokenClaims
	seq    int
}

func (f *fakeTokens) GenerateTokens(userID uint, impersonatorID *uint) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claims == nil {
		f.claims = make(map[string]*services.TokenClaims)
	}
	f.seq++
	access := fmt.Sprintf("access-%d-%d", userID, f.seq)
	refresh := fmt.Sprintf("refresh-%d-%d", userID, f.seq)
	f.claims[access] = &services.TokenClaims{UserID: userID, ImpersonatorID: impersonatorID, TokenType: services.TokenTypeAccess}
	f.claims[refresh] = &services.TokenClaims{UserID: userID, ImpersonatorID: impersonatorID, TokenType: services.TokenTypeRefresh}
	return access, refresh, nil
}

func (f *fakeTokens) ValidateToken(_ context.Context, token string) (*services.TokenClaims, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.claims[token]
	if !ok {
		return nil, errUnknownToken
	}
	return c, nil
}

func (f *fakeTokens) RefreshToken(ctx context.Context, refreshToken string) (string, string, error) {
	c, err := f.ValidateToken(ctx, refreshToken)
	if err != nil {
		return "", "", err
	}
	if err := f.RevokeToken(ctx, refreshToken); err != nil {
		return "", "", err
	}
	return f.GenerateTokens(c.UserID, c.ImpersonatorID)
}

func (f *fakeTokens) RevokeToken(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.claims[token]; !ok {
		return errUnknownToken
	}
	delete(f.claims, token)
	return nil
}

type fakeCaptcha struct {
	accept bool
}

func (c *fakeCaptcha) GenerateRotate(context.Context) (*services.RotateChallenge, error) {
	return &services.RotateChallenge{ID: "c1"}, nil
}

func (c *fakeCaptcha) VerifyRotate(context.Context, string, float64) bool { return c.accept }

type authFixture struct {
	flow   AuthFlow
	users  *fakeUserRepo
	roles  *fakeRoleRepo
	tokens *fakeTokens
}

func newAuthFixture(captcha services.CaptchaService, captchaEnabled bool) *authFixture {
	fx := &authFixture{users: newFakeUserRepo(), roles: newFakeRoleRepo(), tokens: &fakeTokens{}}
	fx.flow = NewAuthFlow(fx.users, fx.roles, nil, fx.tokens, captcha, nil, &fakeTx{}, AuthOptions{
		CaptchaEnabled: captchaEnabled,
		AccessTokenTTL: time.Hour,
		BcryptCost:     bcrypt.MinCost,
	})
	return fx
}

type mfaFixture struct {
	*authFixture
	otps     *fakeOTPRepo
	notifier *fakeNotifier
}

func newMFAFixture() *mfaFixture {
	fx := &mfaFixture{
		authFixture: &authFixture{users: newFakeUserRepo(), roles: newFakeRoleRepo(), tokens: &fakeTokens{}},
		otps:        &fakeOTPRepo{},
		notifier:    &fakeNotifier{},
	}
	fx.flow = NewAuthFlow(fx.users, fx.roles, fx.otps, fx.tokens, nil, fx.notifier, &fakeTx{}, AuthOptions{
		AccessTokenTTL: time.Hour,
		BcryptCost:     bcrypt.MinCost,
		MFAEnabled:     true,
		OTPTTL:         5 * time.Minute,
		OTPMaxAttempts: 3,
	})
	return fx
}

// login starts a challenge and returns it with the emailed code
func (fx *mfaFixture) login(t *testing.T, email string) (*dto.AuthResponse, string) {
	t.Helper()
	resp, err := fx.flow.Login(context.Background(), &dto.LoginRequest{Email: email, Password: "Secret123!"}, NewClientMetadata("10.0.0.1", "test"))
	require.NoError(t, err)
	require.NotEmpty(t, fx.notifier.sent)
	return resp, fx.notifier.sent[len(fx.notifier.sent)-1].message
}

func wrongCode(code string) string {
	if code == "999999" {
		return "111111"
	}
	return "999999"
}

func (fx *authFixture) addUser(t *testing.T, email string, active bool) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("Secret123!"), bcrypt.MinCost)
	require.NoError(t, err)
	return fx.users.add(&models.User{Email: email, PasswordHash: string(hash), FirstName: "Jane", IsActive: active})
}

func TestSignup(t *testing.T) {
	fx := newAuthFixture(nil, false)
	metadata := NewClientMetadata("10.0.0.1", "test")
	metadata.Host = "acme.viewiq.com:443"

	resp, err := fx.flow.Signup(context.Background(), &dto.SignupRequest{
		Email:     " Jane@Example.com ",
		Password:  "Secret123!",
		FirstName: "Jane",
		LastName:  "Doe",
	}, metadata)
	require.NoError(t, err)

	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, 3600, resp.ExpiresIn)
	assert.Equal(t, "jane@example.com", resp.User.Email)
	assert.Equal(t, "acme", resp.User.Domain)
	assert.Equal(t, []string{models.RoleNameUser}, resp.User.Roles)
	assert.Contains(t, resp.User.Capabilities, models.CapabilityCTLCreate.String())

	_, err = fx.flow.Signup(context.Background(), &dto.SignupRequest{Email: "JANE@example.com", Password: "Secret123!"}, nil)
	assert.ErrorIs(t, err, ErrEmailAlreadyExists)
}

func TestLogin(t *testing.T) {
	fx := newAuthFixture(nil, false)
	active := fx.addUser(t, "jane@example.com", true)
	fx.addUser(t, "off@example.com", false)

	t.Run("Success", func(t *testing.T) {
		resp, err := fx.flow.Login(context.Background(), &dto.LoginRequest{Email: "JANE@example.com", Password: "Secret123!"}, nil)
		require.NoError(t, err)
		assert.Equal(t, active.ID, resp.User.ID)
		assert.NotNil(t, resp.User.LastLoginAt)
		assert.Nil(t, resp.User.ImpersonatorID)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		_, err := fx.flow.Login(context.Background(), &dto.LoginRequest{Email: "jane@example.com", Password: "nope"}, nil)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("UnknownEmailLooksTheSame", func(t *testing.T) {
		_, err := fx.flow.Login(context.Background(), &dto.LoginRequest{Email: "ghost@example.com", Password: "Secret123!"}, nil)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("Inactive", func(t *testing.T) {
		_, err := fx.flow.Login(context.Background(), &dto.LoginRequest{Email: "off@example.com", Password: "Secret123!"}, nil)
		assert.ErrorIs(t, err, ErrAccountInactive)
	})
}

func TestLogin_SecondFactor(t *testing.T) {
	ctx := context.Background()

	t.Run("ChallengeInsteadOfTokens", func(t *testing.T) {
		fx := newMFAFixture()
		fx.addUser(t, "jane@example.com", true)

		resp, code := fx.login(t, "jane@example.com")
		assert.True(t, resp.MFARequired)
		assert.Empty(t, resp.AccessToken)
		assert.Empty(t, resp.RefreshToken)
		assert.Nil(t, resp.User)
		assert.Equal(t, "j***@example.com", resp.ChallengeSentTo)
		require.NotNil(t, resp.ChallengeExpiresAt)
		assert.Regexp(t, `^[0-9]{6}$`, code)

		require.Len(t, fx.notifier.sent, 1)
		assert.Equal(t, "jane@example.com", fx.notifier.sent[0].email)
		require.Len(t, fx.otps.rows, 1)
		assert.Equal(t, resp.ChallengeID, fx.otps.rows[0].CorrelationID.String())
		assert.Equal(t, "10.0.0.1", *fx.otps.rows[0].IPAddress)
	})

	t.Run("DashedCodeIssuesTokens", func(t *testing.T) {
		fx := newMFAFixture()
		user := fx.addUser(t, "jane@example.com", true)
		challenge, code := fx.login(t, "jane@example.com")

		resp, err := fx.flow.VerifyLogin(ctx, &dto.VerifyLoginRequest{ChallengeID: challenge.ChallengeID, Code: code[:3] + "-" + code[3:]}, nil)
		require.NoError(t, err)
		assert.False(t, resp.MFARequired)
		assert.NotEmpty(t, resp.AccessToken)
		assert.Equal(t, user.ID, resp.User.ID)
		assert.NotNil(t, resp.User.LastLoginAt)
		assert.Equal(t, models.OTPStatusUsed, fx.otps.rows[0].Status)

		_, err = fx.flow.VerifyLogin(ctx, &dto.VerifyLoginRequest{ChallengeID: challenge.ChallengeID, Code: code}, nil)
		assert.ErrorIs(t, err, ErrMFASessionInvalid)
	})

	t.Run("NewLoginExpiresOldChallenge", func(t *testing.T) {
		fx := newMFAFixture()
		fx.addUser(t, "jane@example.com", true)
		first, firstCode := fx.login(t, "jane@example.com")
		second, secondCode := fx.login(t, "jane@example.com")

		_, err := fx.flow.VerifyLogin(ctx, &dto.VerifyLoginRequest{ChallengeID: first.ChallengeID, Code: firstCode}, nil)
		assert.ErrorIs(t, err, ErrMFASessionInvalid)

		_, err = fx.flow.VerifyLogin(ctx, &dto.VerifyLoginRequest{ChallengeID: second.ChallengeID, Code: secondCode}, nil)
		assert.NoError(t, err)
	})

	t.Run("WrongCodeCountsDown", func(t *testing.T) {
		fx := newMFAFixture()
		fx.addUser(t, "jane@example.com", true)
		challenge, code := fx.login(t, "jane@example.com")
		req := &dto.VerifyLoginRequest{ChallengeID: challenge.ChallengeID, Code: wrongCode(code)}

		_, err := fx.flow.VerifyLogin(ctx, req, nil)
		require.ErrorIs(t, err, ErrOTPInvalid)
		var be *BusinessError
		require.True(t, errors.As(err, &be))
		assert.Equal(t, map[string]int{"attempts_left": 2}, be.Details)

		_, err = fx.flow.VerifyLogin(ctx, req, nil)
		assert.ErrorIs(t, err, ErrOTPInvalid)

		_, err = fx.flow.VerifyLogin(ctx, req, nil)
		require.ErrorIs(t, err, ErrOTPAttemptsExceeded)
		assert.Equal(t, "Max retries exceeded. Please log in again.", err.(*BusinessError).Message)
		assert.Equal(t, models.OTPStatusFailed, fx.otps.rows[0].Status)

		_, err = fx.flow.VerifyLogin(ctx, &dto.VerifyLoginRequest{ChallengeID: challenge.ChallengeID, Code: code}, nil)
		assert.ErrorIs(t, err, ErrOTPAttemptsExceeded)
	})

	t.Run("ExpiredCode", func(t *testing.T) {
		fx := newMFAFixture()
		fx.addUser(t, "jane@example.com", true)
		challenge, code := fx.login(t, "jane@example.com")
		fx.otps.rows[0].ExpiresAt = time.Now().UTC().Add(-time.Second)

		_, err := fx.flow.VerifyLogin(ctx, &dto.VerifyLoginRequest{ChallengeID: challenge.ChallengeID, Code: code}, nil)
		assert.ErrorIs(t, err, ErrOTPExpired)
		assert.Equal(t, models.OTPStatusExpired, fx.otps.rows[0].Status)
	})

	t.Run("UnknownChallenge", func(t *testing.T) {
		fx := newMFAFixture()
		for _, id := range []string{"not-a-uuid", uuid.NewString()} {
			_, err := fx.flow.VerifyLogin(ctx, &dto.VerifyLoginRequest{ChallengeID: id, Code: "123456"}, nil)
			require.ErrorIs(t, err, ErrMFASessionInvalid)
			assert.Equal(t, "Invalid session for the user. Please log in again.", err.(*BusinessError).Message)
		}
	})

	t.Run("DeactivatedBeforeVerify", func(t *testing.T) {
		fx := newMFAFixture()
		user := fx.addUser(t, "jane@example.com", true)
		challenge, code := fx.login(t, "jane@example.com")
		user.IsActive = false

		_, err := fx.flow.VerifyLogin(ctx, &dto.VerifyLoginRequest{ChallengeID: challenge.ChallengeID, Code: code}, nil)
		assert.ErrorIs(t, err, ErrAccountInactive)
	})

	t.Run("WrongPasswordSendsNothing", func(t *testing.T) {
		fx := newMFAFixture()
		fx.addUser(t, "jane@example.com", true)
		_, err := fx.flow.Login(ctx, &dto.LoginRequest{Email: "jane@example.com", Password: "nope"}, nil)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		assert.Empty(t, fx.notifier.sent)
		assert.Empty(t, fx.otps.rows)
	})
}

func TestGenerateOTP(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := GenerateOTP()
		require.NoError(t, err)
		assert.Regexp(t, `^[1-9][0-9]{5}$`, code)
	}
}

func TestLogin_Captcha(t *testing.T) {
	angle := 90.0
	req := &dto.LoginRequest{Email: "jane@example.com", Password: "Secret123!", CaptchaID: "c1", CaptchaAngle: &angle}

	rejecting := newAuthFixture(&fakeCaptcha{accept: false}, true)
	rejecting.addUser(t, "jane@example.com", true)
	_, err := rejecting.flow.Login(context.Background(), req, nil)
	assert.ErrorIs(t, err, ErrCaptchaInvalid)

	missing := *req
	missing.CaptchaAngle = nil
	_, err = rejecting.flow.Login(context.Background(), &missing, nil)
	assert.ErrorIs(t, err, ErrCaptchaInvalid)

	accepting := newAuthFixture(&fakeCaptcha{accept: true}, true)
	accepting.addUser(t, "jane@example.com", true)
	_, err = accepting.flow.Login(context.Background(), req, nil)
	assert.NoError(t, err)
}

func TestCaptchaDisabled(t *testing.T) {
	fx := newAuthFixture(nil, false)
	_, err := fx.flow.Captcha(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRefreshAndLogout(t *testing.T) {
	fx := newAuthFixture(nil, false)
	fx.addUser(t, "jane@example.com", true)
	ctx := context.Background()

	login, err := fx.flow.Login(ctx, &dto.LoginRequest{Email: "jane@example.com", Password: "Secret123!"}, nil)
	require.NoError(t, err)

	_, err = fx.flow.Refresh(ctx, &dto.RefreshTokenRequest{RefreshToken: login.AccessToken})
	assert.ErrorIs(t, err, ErrUnauthenticated)

	refreshed, err := fx.flow.Refresh(ctx, &dto.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	_, err = fx.flow.Refresh(ctx, &dto.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	assert.ErrorIs(t, err, ErrUnauthenticated)

	require.NoError(t, fx.flow.Logout(ctx, refreshed.AccessToken))
	assert.ErrorIs(t, fx.flow.Logout(ctx, refreshed.AccessToken), ErrUnauthenticated)
}

func TestAdminUserFlow(t *testing.T) {
	fx := newAuthFixture(nil, false)
	admin := NewAdminUserFlow(fx.users, fx.roles, nil, fx.flow, &fakeTx{})
	target := fx.addUser(t, "jane@example.com", true)
	inactive := fx.addUser(t, "off@example.com", false)
	root := fx.users.add(&models.User{Email: "root@example.com", IsActive: true, IsSuperuser: true})
	ctx := asUser(100, models.CapabilityAdmin)

	t.Run("Impersonate", func(t *testing.T) {
		resp, err := admin.Impersonate(ctx, target.ID)
		require.NoError(t, err)
		require.NotNil(t, resp.User.ImpersonatorID)
		assert.Equal(t, uint(100), *resp.User.ImpersonatorID)

		claims, err := fx.tokens.ValidateToken(context.Background(), resp.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, target.ID, claims.UserID)
	})

	t.Run("ImpersonateInactive", func(t *testing.T) {
		_, err := admin.Impersonate(ctx, inactive.ID)
		assert.ErrorIs(t, err, ErrImpersonateInactive)
	})

	t.Run("SuperuserProtected", func(t *testing.T) {
		_, err := admin.Impersonate(ctx, root.ID)
		assert.ErrorIs(t, err, ErrSuperuserProtected)
		assert.ErrorIs(t, admin.DeleteUser(ctx, root.ID), ErrSuperuserProtected)

		active := false
		_, err = admin.UpdateUser(ctx, root.ID, &dto.AdminUpdateUserRequest{IsActive: &active})
		assert.ErrorIs(t, err, ErrSuperuserProtected)
	})

	t.Run("CannotDeleteSelf", func(t *testing.T) {
		assert.ErrorIs(t, admin.DeleteUser(asUser(target.ID, models.CapabilityAdmin), target.ID), ErrCannotDeleteSelf)
	})

	t.Run("UnknownRoleIDs", func(t *testing.T) {
		ids := []uint{1, 42}
		_, err := admin.UpdateUser(ctx, target.ID, &dto.AdminUpdateUserRequest{RoleIDs: &ids})
		assert.Equal(t, "Unknown role ids: 42", validationMessage(t, err))
	})

	t.Run("ReplaceRoles", func(t *testing.T) {
		ids := []uint{1}
		name := " Janet "
		resp, err := admin.UpdateUser(ctx, target.ID, &dto.AdminUpdateUserRequest{RoleIDs: &ids, FirstName: &name})
		require.NoError(t, err)
		assert.Equal(t, "Janet", resp.FirstName)
		assert.Equal(t, []string{models.RoleNameUser}, resp.Roles)
	})

	t.Run("RequiresAdmin", func(t *testing.T) {
		_, err := admin.GetUser(asUser(1, models.CapabilityCTLRead), target.ID)
		assert.ErrorIs(t, err, ErrForbidden)
		err = admin.ExportUsers(asUser(1, models.CapabilityCTLRead), &dto.AdminListUsersQuery{}, &bytes.Buffer{})
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("ExportUsers", func(t *testing.T) {
		login := time.Date(2024, 3, 2, 8, 9, 10, 0, time.UTC)
		target.Company = "Acme, Inc."
		target.LastLoginAt = &login
		target.CreatedAt = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
		active := true

		var buf bytes.Buffer
		require.NoError(t, admin.ExportUsers(ctx, &dto.AdminListUsersQuery{IsActive: &active}, &buf))

		records, err := csv.NewReader(&buf).ReadAll()
		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.Equal(t, []string{
			"First name", "Last name", "Company", "Phone", "Email", "Domain",
			"Registered date", "Last login date", "Roles", "Is active",
		}, records[0])
		assert.Equal(t, []string{
			"Janet", "", "Acme, Inc.", "", "jane@example.com", "",
			"2024-01-15 10:30:00", "2024-03-02 08:09:10", models.RoleNameUser, "true",
		}, records[1])
		assert.Equal(t, "root@example.com", records[2][4])
		assert.Equal(t, "", records[2][7])
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, admin.DeleteUser(ctx, inactive.ID))
		_, err := admin.GetUser(ctx, inactive.ID)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestRoleFlow(t *testing.T) {
	roles := newFakeRoleRepo()
	flow := NewRoleFlow(roles)
	ctx := asUser(1, models.CapabilityAdmin)

	_, err := flow.CreateRole(ctx, &dto.RoleRequest{Name: "analyst", Capabilities: []string{"ctl.read", "ctl.fly", "bste.nope"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownCapabilities)
	assert.Contains(t, err.Error(), "ctl.fly, bste.nope")

	created, err := flow.CreateRole(ctx, &dto.RoleRequest{Name: " analyst ", Capabilities: []string{"bste.read", "ctl.read"}})
	require.NoError(t, err)
	assert.Equal(t, "analyst", created.Name)
	assert.ElementsMatch(t, []string{"bste.read", "ctl.read"}, created.Capabilities)

	_, err = flow.CreateRole(ctx, &dto.RoleRequest{Name: "analyst", Capabilities: []string{}})
	assert.ErrorIs(t, err, ErrRoleAlreadyExists)

	list, err := flow.ListRoles(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, flow.DeleteRole(ctx, created.ID))
	assert.ErrorIs(t, flow.DeleteRole(ctx, created.ID), ErrRoleNotFound)

	caps, err := flow.ListCapabilities(ctx)
	require.NoError(t, err)
	assert.Len(t, caps, len(models.AllCapabilities()))

	_, err = flow.ListRoles(asUser(2))
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestResolveDomain(t *testing.T) {
	tests := map[string]string{
		"acme.viewiq.com":          "acme",
		"ACME.viewiq.com:8443":     "acme",
		"acme.viewiq.com, proxy":   "acme",
		"viewiq.com":               utils.DefaultDomain,
		"www.viewiq.com":           utils.DefaultDomain,
		"127.0.0.1:3000":           utils.DefaultDomain,
		"":                         utils.DefaultDomain,
		"brand.staging.viewiq.com": "brand",
	}
	for host, want := range tests {
		assert.Equal(t, want, ResolveDomain(host), host)
	}
}
