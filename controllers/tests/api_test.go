package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	gosync "sync"
	"testing"
	"time"

	"Forest/controllers"
	"Forest/middleware"
	models "Forest/models/postgres"
	"Forest/routes"
	"Forest/services/catalog"
	"Forest/services/envelope"
	"Forest/services/game"
	"Forest/services/keys"
	"Forest/services/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var (
	keysOnce   gosync.Once
	serverKeys *keys.Pair
	clientKeys *keys.Pair
)

func testKeys(t *testing.T) (*keys.Pair, *keys.Pair) {
	t.Helper()
	keysOnce.Do(func() {
		var err error
		if serverKeys, err = keys.Generate(keys.DefaultBits); err != nil {
			panic(err)
		}
		if clientKeys, err = keys.Generate(keys.DefaultBits); err != nil {
			panic(err)
		}
	})
	return serverKeys, clientKeys
}

var loadout = []string{"Fireball", "Mend", "Smite", "Jab", "Kick", "Pray"}

type api struct {
	router    *gin.Engine
	codec     *envelope.Codec
	server    *keys.Pair
	client    *keys.Pair
	clientPub string
	mem       *store.Memory
}

func newAPI(t *testing.T) *api {
	t.Helper()
	gin.SetMode(gin.TestMode)
	server, client := testKeys(t)
	logger := zaptest.NewLogger(t)

	mem := store.NewMemory(
		models.Ability{Name: "Fireball", Type: "a", Chat: "[player2] burns [player1]", Num: 2, Dice: 6},
		models.Ability{Name: "Mend", Type: "h", Num: 1, Dice: 8},
		models.Ability{Name: "Smite", Type: "a", Num: 1, Dice: 4},
		models.Ability{Name: "Jab", Type: "a", Num: 1, Dice: 2},
		models.Ability{Name: "Kick", Type: "attack", Num: 1, Dice: 3},
		models.Ability{Name: "Pray", Type: "heal", Num: 1, Dice: 4},
	)
	codec := envelope.Default(logger)
	cat := catalog.New(mem, nil, nil, logger)
	reg := game.NewRegistry(cat, game.Options{Logger: logger})
	t.Cleanup(reg.Shutdown)

	s := &controllers.Services{
		Store:    mem,
		Catalog:  cat,
		Registry: reg,
		Codec:    codec,
		Keys:     server,
		Auth:     middleware.NewAuth("test-secret", time.Hour),
		Logger:   logger,
	}
	r := gin.New()
	middleware.SetUpMiddleware(r, "test-session", false)
	routes.SetupRoutes(r, s)

	pub, err := client.PublicKeyBase64()
	require.NoError(t, err)
	return &api{router: r, codec: codec, server: server, client: client, clientPub: pub, mem: mem}
}

// post seals payload for the server and sends it with an optional bearer token.
func (a *api) post(t *testing.T, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body []byte
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		sealed, err := a.codec.Encrypt(data, a.server.Public())
		require.NoError(t, err)
		body, err = json.Marshal(sealed)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

// open decrypts a sealed response with the client's private key.
func (a *api) open(t *testing.T, w *httptest.ResponseRecorder, dst any) envelope.Envelope {
	t.Helper()
	var env envelope.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	pt, err := a.codec.Decrypt(env, a.client.Private)
	require.NoError(t, err)
	require.NoError(t, pt.Decode(dst))
	return env
}

func (a *api) login(t *testing.T, username string) string {
	t.Helper()
	w := a.post(t, "/register", "", map[string]string{"username": username, "password": "pw-" + username, "public_key": a.clientPub})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = a.post(t, "/login", "", map[string]string{"username": username, "password": "pw-" + username})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Token string `json:"token"`
	}
	a.open(t, w, &resp)
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestPingAndPublicKey(t *testing.T) {
	a := newAPI(t)

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	a.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/public_key", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		PublicKey string `json:"public_key"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	pub, err := keys.ParsePublicKey(resp.PublicKey)
	require.NoError(t, err)
	assert.True(t, pub.Equal(a.server.Public()))
}

func TestRegisterAndLogin(t *testing.T) {
	a := newAPI(t)

	w := a.post(t, "/register", "", map[string]string{"username": "ana", "password": "secret", "public_key": a.clientPub})
	require.Equal(t, http.StatusCreated, w.Code)
	var reg map[string]string
	env := a.open(t, w, &reg)
	assert.Equal(t, envelope.MethodHybrid, env.Method)
	assert.Equal(t, "ana", reg["username"])

	user, err := a.mem.GetUser(context.Background(), "ana")
	require.NoError(t, err)
	assert.NotEqual(t, "secret", user.PasswordHash)

	w = a.post(t, "/register", "", map[string]string{"username": "ana", "password": "other"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = a.post(t, "/register", "", map[string]string{"username": "", "password": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.post(t, "/register", "", map[string]string{"username": "bad", "password": "x", "public_key": "not-a-key"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.post(t, "/login", "", map[string]string{"username": "ana", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = a.post(t, "/login", "", map[string]string{"username": "ana", "password": "secret"})
	require.Equal(t, http.StatusOK, w.Code)
	var login struct {
		Token    string `json:"token"`
		Username string `json:"username"`
	}
	a.open(t, w, &login)
	assert.Equal(t, "ana", login.Username)
	assert.NotEmpty(t, login.Token)
}

func TestRejectsPlainAndUnauthenticatedRequests(t *testing.T) {
	a := newAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewBufferString(`{"encrypted":false,"data":"{}"}`))
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.post(t, "/create_room", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = a.post(t, "/create_room", "forged.token.value", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCharacterLifecycle(t *testing.T) {
	a := newAPI(t)
	token := a.login(t, "ana")

	w := a.post(t, "/save_character", token, map[string]any{"name": "Rook", "description": "tank", "abilities": loadout})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = a.post(t, "/save_character", token, map[string]any{"name": "Rook", "abilities": loadout})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = a.post(t, "/save_character", token, map[string]any{"name": "Short", "abilities": []string{"Fireball"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	bad := append([]string{}, loadout[:5]...)
	w = a.post(t, "/save_character", token, map[string]any{"name": "Odd", "abilities": append(bad, "Nope")})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.post(t, "/edit_character", token, map[string]any{"name": "Rook", "new_name": "Tower", "description": "renamed", "abilities": loadout})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = a.post(t, "/get_characters", token, map[string]any{})
	require.Equal(t, http.StatusOK, w.Code)
	var list []struct {
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Abilities   []string `json:"abilities"`
	}
	a.open(t, w, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "Tower", list[0].Name)
	assert.Equal(t, "renamed", list[0].Description)
	assert.Equal(t, loadout, list[0].Abilities)

	w = a.post(t, "/get_character", token, map[string]string{"name": "Rook"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.post(t, "/delete_character", token, map[string]string{"name": "Tower"})
	assert.Equal(t, http.StatusOK, w.Code)
	w = a.post(t, "/delete_character", token, map[string]string{"name": "Tower"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAbilities(t *testing.T) {
	a := newAPI(t)
	token := a.login(t, "ana")

	w := a.post(t, "/get_abilities", token, map[string]any{})
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]any
	a.open(t, w, &list)
	assert.Len(t, list, len(loadout))

	w = a.post(t, "/get_ability_details", token, map[string]string{"name": "Fireball"})
	require.Equal(t, http.StatusOK, w.Code)
	var details struct {
		Type  string `json:"type"`
		Range string `json:"range"`
	}
	a.open(t, w, &details)
	assert.Equal(t, "attack", details.Type)
	assert.Equal(t, "2d6", details.Range)

	w = a.post(t, "/get_ability_details", token, map[string]string{"name": "Nope"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRoomRoutes(t *testing.T) {
	a := newAPI(t)
	ana := a.login(t, "ana")
	ben := a.login(t, "ben")
	carl := a.login(t, "carl")

	w := a.post(t, "/create_room", ana, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		RoomCode string `json:"room_code"`
	}
	a.open(t, w, &created)
	require.Len(t, created.RoomCode, 4)
	code := created.RoomCode

	w = a.post(t, "/join_room_route", ben, map[string]string{"room_code": code})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var snapshot game.Snapshot
	a.open(t, w, &snapshot)
	assert.Equal(t, "ana", snapshot.Owner)
	assert.Len(t, snapshot.Members, 2)

	w = a.post(t, "/join_room_route", ben, map[string]string{"room_code": "none"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.post(t, "/get_room_data", carl, map[string]string{"room_code": code})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.post(t, "/get_room_data", ana, map[string]string{"room_code": code})
	require.Equal(t, http.StatusOK, w.Code)

	w = a.post(t, "/get_group1", ana, map[string]string{"room_code": code})
	require.Equal(t, http.StatusOK, w.Code)
	var group struct {
		Group   string   `json:"group"`
		Members []string `json:"members"`
	}
	a.open(t, w, &group)
	assert.Equal(t, "group1", group.Group)
	assert.Empty(t, group.Members)

	w = a.post(t, "/join_room_route", ana, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.post(t, "/remove_player_from_room", ben, map[string]string{"room_code": code})
	require.Equal(t, http.StatusOK, w.Code)

	w = a.post(t, "/get_room_data", ana, map[string]string{"room_code": code})
	require.Equal(t, http.StatusOK, w.Code)
	a.open(t, w, &snapshot)
	assert.Len(t, snapshot.Members, 1)
}
