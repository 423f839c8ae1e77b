package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/voxguild/permengine/internal/config"
	"github.com/voxguild/permengine/internal/db/models"
	"github.com/voxguild/permengine/internal/engine"
	"github.com/voxguild/permengine/internal/metrics"
	"github.com/voxguild/permengine/internal/web"
	"github.com/voxguild/permengine/internal/web/handler"
	authmiddleware "github.com/voxguild/permengine/internal/web/middleware/auth"
)

const serviceToken = "svc-token"

type envelope struct {
	Data     json.RawMessage    `json:"data"`
	Error    *handler.ErrorBody `json:"error"`
	Metadata handler.Metadata   `json:"metadata"`
}

type server struct {
	svc *web.Service
	cfg *config.Config
}

func newServer(t *testing.T) *server {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))

	registry := prometheus.NewRegistry()

	eng, err := engine.New(db, engine.WithMetrics(metrics.New(registry)))
	require.NoError(t, err)

	cfg := &config.Config{
		Webserver: config.Webserver{Port: 8080, FastShutdown: true},
		Auth:      config.Auth{JWTSecret: "test-secret", ServiceToken: serviceToken},
	}

	svc, err := web.New(cfg, eng, registry)
	require.NoError(t, err)

	return &server{svc: svc, cfg: cfg}
}

func (s *server) token(t *testing.T, userID uuid.UUID) string {
	t.Helper()

	tok, err := authmiddleware.Sign(s.cfg.Auth, userID, time.Minute)
	require.NoError(t, err)

	return "Bearer " + tok
}

// do sends a request and decodes the envelope; out receives data when not nil.
func (s *server) do(t *testing.T, method, path, authorization string, body, out any) (int, envelope) {
	t.Helper()

	var reader io.Reader

	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	if authorization != "" {
		req.Header.Set(fiber.HeaderAuthorization, authorization)
	}

	resp, err := s.svc.App.Test(req, fiber.TestConfig{Timeout: 5 * time.Second})
	require.NoError(t, err)

	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var env envelope

	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))

		if out != nil && len(env.Data) > 0 {
			require.NoError(t, json.Unmarshal(env.Data, out))
		}
	}

	return resp.StatusCode, env
}

func (s *server) internal(t *testing.T, method, path string, body, out any) int {
	t.Helper()

	status, _ := s.do(t, method, handler.InternalPrefix+path, "Bearer "+serviceToken, body, out)

	return status
}

type world struct {
	*server
	owner, member uuid.UUID
	guildID       uuid.UUID
	channelID     uuid.UUID
	defaultRole   handler.Role
}

func newWorld(t *testing.T) *world {
	t.Helper()

	w := &world{server: newServer(t), owner: uuid.New(), member: uuid.New()}

	var created struct {
		ID          uuid.UUID    `json:"id"`
		DefaultRole handler.Role `json:"default_role"`
	}

	require.Equal(t, fiber.StatusCreated, w.internal(t, fiber.MethodPost, "/guilds",
		map[string]string{"name": "guild", "owner_id": w.owner.String()}, &created))

	w.guildID = created.ID
	w.defaultRole = created.DefaultRole

	var ch struct {
		ID uuid.UUID `json:"id"`
	}

	require.Equal(t, fiber.StatusCreated, w.internal(t, fiber.MethodPost, "/guilds/"+w.guildID.String()+"/channels",
		map[string]string{"name": "general"}, &ch))

	w.channelID = ch.ID

	require.Equal(t, fiber.StatusNoContent, w.internal(t, fiber.MethodPut,
		"/guilds/"+w.guildID.String()+"/members/"+w.member.String(), nil, nil))

	return w
}

func TestCheckAliveAndMetrics(t *testing.T) {
	s := newServer(t)

	status, _ := s.do(t, fiber.MethodGet, web.CheckAlivePath, "", nil, nil)
	assert.Equal(t, fiber.StatusOK, status)

	_, _ = s.do(t, fiber.MethodGet, handler.APIPrefix+"/guilds/"+uuid.NewString()+"/roles", s.token(t, uuid.New()), nil, nil)

	req := httptest.NewRequest(fiber.MethodGet, web.MetricsPath, nil)
	resp, err := s.svc.App.Test(req)
	require.NoError(t, err)

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "permengine_operations_total")
}

func TestAuthentication(t *testing.T) {
	w := newWorld(t)
	path := handler.APIPrefix + "/guilds/" + w.guildID.String() + "/roles"

	status, env := w.do(t, fiber.MethodGet, path, "", nil, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, handler.ErrCodeTokenRequired, env.Error.Code)
	assert.NotEmpty(t, env.Metadata.RequestID)

	status, env = w.do(t, fiber.MethodGet, path, "Bearer nonsense", nil, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, handler.ErrCodeTokenInvalid, env.Error.Code)

	status, _ = w.do(t, fiber.MethodPost, handler.InternalPrefix+"/guilds", w.token(t, w.owner),
		map[string]string{"owner_id": w.owner.String()}, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status, "user tokens do not open lifecycle routes")

	status, _ = w.do(t, fiber.MethodGet, path, w.token(t, w.owner), nil, nil)
	assert.Equal(t, fiber.StatusOK, status)
}

func TestFlags(t *testing.T) {
	s := newServer(t)

	var listing struct {
		Flags     []map[string]any      `json:"flags"`
		Dangerous handler.PermissionSet `json:"dangerous"`
	}

	status, _ := s.do(t, fiber.MethodGet, handler.APIPrefix+"/permissions/flags", s.token(t, uuid.New()), nil, &listing)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, listing.Flags, 22)
	assert.Contains(t, listing.Dangerous.Names, "ADMINISTRATOR")
}

func TestRoleAndOverrideFlow(t *testing.T) {
	w := newWorld(t)
	owner := w.token(t, w.owner)
	member := w.token(t, w.member)
	rolesPath := handler.APIPrefix + "/guilds/" + w.guildID.String() + "/roles"
	resolvePath := handler.APIPrefix + "/channels/" + w.channelID.String() + "/permissions/@me"
	overridePath := handler.APIPrefix + "/channels/" + w.channelID.String() + "/overrides/member/" + w.member.String()

	var mods handler.Role

	status, _ := w.do(t, fiber.MethodPost, rolesPath, owner,
		map[string]any{"name": "Mods", "permissions": []string{"manage-roles", "SEND_MESSAGES", "Speak"}}, &mods)
	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, []string{"SEND_MESSAGES", "SPEAK", "MANAGE_ROLES"}, mods.Permissions.Names)
	assert.Equal(t, 1, mods.Position)

	status, _ = w.do(t, fiber.MethodPut,
		handler.APIPrefix+"/guilds/"+w.guildID.String()+"/members/"+w.member.String()+"/roles/"+mods.ID.String(),
		owner, nil, nil)
	require.Equal(t, fiber.StatusNoContent, status)

	var held []handler.Role

	status, _ = w.do(t, fiber.MethodGet, handler.APIPrefix+"/guilds/"+w.guildID.String()+"/members/@me/roles", member, nil, &held)
	require.Equal(t, fiber.StatusOK, status)
	require.Len(t, held, 2)
	assert.Equal(t, mods.ID, held[0].ID)

	var resolved struct {
		Permissions handler.PermissionSet `json:"permissions"`
		Allowed     *bool                 `json:"allowed"`
	}

	status, _ = w.do(t, fiber.MethodGet, resolvePath+"?check=SPEAK,SEND_MESSAGES", member, nil, &resolved)
	require.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, resolved.Permissions.Names, "SPEAK")
	require.NotNil(t, resolved.Allowed)
	assert.True(t, *resolved.Allowed)

	var ow handler.Overwrite

	status, _ = w.do(t, fiber.MethodPut, overridePath, owner, map[string]any{"deny": []string{"SPEAK"}}, &ow)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, []string{"SPEAK"}, ow.Deny.Names)
	assert.Equal(t, "member", ow.SubjectKind)

	resolved.Allowed = nil
	status, _ = w.do(t, fiber.MethodGet, resolvePath+"?check=SPEAK", member, nil, &resolved)
	require.Equal(t, fiber.StatusOK, status)
	assert.NotContains(t, resolved.Permissions.Names, "SPEAK")
	require.NotNil(t, resolved.Allowed)
	assert.False(t, *resolved.Allowed)

	var rows []handler.Overwrite

	status, _ = w.do(t, fiber.MethodGet, handler.APIPrefix+"/channels/"+w.channelID.String()+"/overrides", member, nil, &rows)
	require.Equal(t, fiber.StatusOK, status)
	require.Len(t, rows, 1)

	status, env := w.do(t, fiber.MethodPut, overridePath, owner, map[string]any{"inherit": []string{"SPEAK"}}, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "null", string(env.Data), "an emptied overwrite is removed")

	status, _ = w.do(t, fiber.MethodDelete, overridePath, owner, nil, nil)
	assert.Equal(t, fiber.StatusNoContent, status)

	var renamed handler.Role

	status, _ = w.do(t, fiber.MethodPatch, handler.APIPrefix+"/roles/"+mods.ID.String(), owner,
		map[string]any{"name": "Moderators", "position": 4}, &renamed)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Moderators", renamed.Name)
	assert.Equal(t, 4, renamed.Position)
	assert.Equal(t, mods.Permissions, renamed.Permissions)

	status, _ = w.do(t, fiber.MethodDelete, handler.APIPrefix+"/roles/"+mods.ID.String(), owner, nil, nil)
	assert.Equal(t, fiber.StatusNoContent, status)
}

func TestErrorMapping(t *testing.T) {
	w := newWorld(t)
	owner := w.token(t, w.owner)
	member := w.token(t, w.member)
	rolesPath := handler.APIPrefix + "/guilds/" + w.guildID.String() + "/roles"
	defaultPath := handler.APIPrefix + "/roles/" + w.defaultRole.ID.String()

	testCases := []struct {
		name       string
		method     string
		path       string
		auth       string
		body       any
		wantStatus int
		wantCode   handler.ErrCode
	}{
		{
			name:       "member without manage roles",
			method:     fiber.MethodPost,
			path:       rolesPath,
			auth:       member,
			body:       map[string]any{"name": "x"},
			wantStatus: fiber.StatusForbidden,
			wantCode:   handler.ErrCodePermissionDenied,
		},
		{
			name:       "unknown flag name",
			method:     fiber.MethodPost,
			path:       rolesPath,
			auth:       owner,
			body:       map[string]any{"name": "x", "permissions": []string{"FLY"}},
			wantStatus: fiber.StatusUnprocessableEntity,
			wantCode:   handler.ErrCodeValidation,
		},
		{
			name:       "missing name",
			method:     fiber.MethodPost,
			path:       rolesPath,
			auth:       owner,
			body:       map[string]any{},
			wantStatus: fiber.StatusUnprocessableEntity,
			wantCode:   handler.ErrCodeValidation,
		},
		{
			name:       "malformed body",
			method:     fiber.MethodPost,
			path:       rolesPath,
			auth:       owner,
			body:       "not an object",
			wantStatus: fiber.StatusBadRequest,
			wantCode:   handler.ErrCodeInvalidPayload,
		},
		{
			name:       "dangerous flag on the default role",
			method:     fiber.MethodPatch,
			path:       defaultPath,
			auth:       owner,
			body:       map[string]any{"permissions": []string{"ADMINISTRATOR"}},
			wantStatus: fiber.StatusUnprocessableEntity,
			wantCode:   handler.ErrCodeDangerousOnDefault,
		},
		{
			name:       "delete the default role",
			method:     fiber.MethodDelete,
			path:       defaultPath,
			auth:       owner,
			wantStatus: fiber.StatusConflict,
			wantCode:   handler.ErrCodeCannotDeleteDefault,
		},
		{
			name:   "unassign the default role",
			method: fiber.MethodDelete,
			path: handler.APIPrefix + "/guilds/" + w.guildID.String() + "/members/" + w.member.String() +
				"/roles/" + w.defaultRole.ID.String(),
			auth:       owner,
			wantStatus: fiber.StatusUnprocessableEntity,
			wantCode:   handler.ErrCodeDefaultRoleImplicit,
		},
		{
			name:   "conflicting override delta",
			method: fiber.MethodPut,
			path: handler.APIPrefix + "/channels/" + w.channelID.String() + "/overrides/role/" +
				w.defaultRole.ID.String(),
			auth:       owner,
			body:       map[string]any{"allow": []string{"SPEAK"}, "deny": []string{"SPEAK"}},
			wantStatus: fiber.StatusUnprocessableEntity,
			wantCode:   handler.ErrCodeInvalidPermissions,
		},
		{
			name:       "unknown override subject kind",
			method:     fiber.MethodPut,
			path:       handler.APIPrefix + "/channels/" + w.channelID.String() + "/overrides/bot/" + uuid.NewString(),
			auth:       owner,
			body:       map[string]any{},
			wantStatus: fiber.StatusBadRequest,
			wantCode:   handler.ErrCodeInvalidID,
		},
		{
			name:       "resolve in an unknown channel",
			method:     fiber.MethodGet,
			path:       handler.APIPrefix + "/channels/" + uuid.NewString() + "/permissions/@me",
			auth:       member,
			wantStatus: fiber.StatusNotFound,
			wantCode:   handler.ErrCodeNotFound,
		},
		{
			name:       "resolve a non-member",
			method:     fiber.MethodGet,
			path:       handler.APIPrefix + "/channels/" + w.channelID.String() + "/permissions/" + uuid.NewString(),
			auth:       member,
			wantStatus: fiber.StatusNotFound,
			wantCode:   handler.ErrCodeNotFound,
		},
		{
			name:       "malformed id",
			method:     fiber.MethodGet,
			path:       handler.APIPrefix + "/guilds/42/roles",
			auth:       owner,
			wantStatus: fiber.StatusBadRequest,
			wantCode:   handler.ErrCodeInvalidID,
		},
		{
			name:       "unknown route",
			method:     fiber.MethodGet,
			path:       handler.APIPrefix + "/nowhere",
			auth:       owner,
			wantStatus: fiber.StatusNotFound,
			wantCode:   handler.ErrCodeNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			status, env := w.do(t, tc.method, tc.path, tc.auth, tc.body, nil)
			assert.Equal(t, tc.wantStatus, status)
			require.NotNil(t, env.Error)
			assert.Equal(t, tc.wantCode, env.Error.Code)
		})
	}
}

func TestReadsRequireMembership(t *testing.T) {
	w := newWorld(t)
	outsider := w.token(t, uuid.New())
	member := w.token(t, w.member)
	guild := handler.APIPrefix + "/guilds/" + w.guildID.String()
	channel := handler.APIPrefix + "/channels/" + w.channelID.String()

	status, _ := w.do(t, fiber.MethodPut, channel+"/overrides/member/"+w.member.String(), w.token(t, w.owner),
		map[string]any{"deny": []string{"SPEAK"}}, nil)
	require.Equal(t, fiber.StatusOK, status)

	paths := []string{
		channel + "/overrides",
		channel + "/permissions/" + w.member.String(),
		guild + "/permissions/" + w.owner.String(),
		guild + "/roles",
		guild + "/members/" + w.member.String() + "/roles",
	}

	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			status, env := w.do(t, fiber.MethodGet, path, outsider, nil, nil)
			assert.Equal(t, fiber.StatusForbidden, status)
			require.NotNil(t, env.Error)
			assert.Equal(t, handler.ErrCodePermissionDenied, env.Error.Code)
			assert.Equal(t, "null", string(env.Data))

			status, _ = w.do(t, fiber.MethodGet, path, member, nil, nil)
			assert.Equal(t, fiber.StatusOK, status)
		})
	}
}

func TestLifecycleRoutes(t *testing.T) {
	w := newWorld(t)
	guild := "/guilds/" + w.guildID.String()

	assert.Equal(t, fiber.StatusConflict, w.internal(t, fiber.MethodPost, "/guilds",
		map[string]string{"id": w.guildID.String(), "owner_id": w.owner.String()}, nil))
	assert.Equal(t, fiber.StatusUnprocessableEntity, w.internal(t, fiber.MethodPost, "/guilds",
		map[string]string{"owner_id": "nobody"}, nil))
	assert.Equal(t, fiber.StatusUnprocessableEntity, w.internal(t, fiber.MethodDelete,
		guild+"/members/"+w.owner.String(), nil, nil), "the owner cannot leave")

	assert.Equal(t, fiber.StatusNoContent, w.internal(t, fiber.MethodDelete, guild+"/members/"+w.member.String(), nil, nil))
	assert.Equal(t, fiber.StatusNotFound, w.internal(t, fiber.MethodDelete, guild+"/members/"+w.member.String(), nil, nil))

	assert.Equal(t, fiber.StatusNoContent, w.internal(t, fiber.MethodDelete, "/channels/"+w.channelID.String(), nil, nil))
	assert.Equal(t, fiber.StatusNoContent, w.internal(t, fiber.MethodDelete, guild, nil, nil))
	assert.Equal(t, fiber.StatusNotFound, w.internal(t, fiber.MethodDelete, guild, nil, nil))

	status, _ := w.do(t, fiber.MethodGet, handler.APIPrefix+"/guilds/"+w.guildID.String()+"/permissions/@me",
		w.token(t, w.owner), nil, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}
