// Command client is a participant-side tool: it keeps a local key pair,
// registers or logs in with the server and drives the room REST routes over
// sealed envelopes.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"Forest/services/envelope"
	"Forest/services/keys"
	"Forest/services/participant"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type settings struct {
	ServerURL   string `env:"FOREST_SERVER_URL" envDefault:"http://localhost:8080"`
	KeyDir      string `env:"FOREST_CLIENT_KEY_DIR" envDefault:".forest"`
	FallbackKey string `env:"FALLBACK_KEY" envDefault:"SecureKey7890123"`
	FallbackIV  string `env:"FALLBACK_IV" envDefault:"Vector4567890123"`
}

type client struct {
	http    *http.Client
	base    string
	session *participant.Session
	token   string
}

func main() {
	_ = godotenv.Load()
	var cfg settings
	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintln(os.Stderr, "settings:", err)
		os.Exit(2)
	}

	username := flag.String("user", "", "account name")
	password := flag.String("password", "", "account password")
	register := flag.Bool("register", false, "create the account before logging in")
	create := flag.Bool("create", false, "create a room after logging in")
	join := flag.String("join", "", "join the room with this code after logging in")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	if err := run(cfg, logger, *username, *password, *register, *create, *join); err != nil {
		logger.Fatal("client failed", zap.Error(err))
	}
}

func run(cfg settings, logger *zap.Logger, username, password string, register, create bool, join string) error {
	if username == "" || password == "" {
		return errors.New("-user and -password are required")
	}

	pair, err := keys.LoadOrGenerate(cfg.KeyDir)
	if err != nil {
		return fmt.Errorf("key material: %w", err)
	}
	codec := envelope.NewCodec(cfg.FallbackKey, cfg.FallbackIV, logger)
	session, err := participant.NewSession(codec, pair, "")
	if err != nil {
		return err
	}
	c := &client{http: &http.Client{Timeout: 10 * time.Second}, base: cfg.ServerURL, session: session}

	serverKey, err := c.serverKey()
	if err != nil {
		return err
	}
	if err := session.SetServerKey(serverKey); err != nil {
		return err
	}

	creds := map[string]string{"username": username, "password": password, "public_key": session.PublicKey()}
	if register {
		var out map[string]string
		if err := c.call("/register", creds, &out); err != nil {
			return fmt.Errorf("register: %w", err)
		}
		logger.Info("registered", zap.String("user", out["username"]))
	}

	var login struct {
		Token string `json:"token"`
	}
	if err := c.call("/login", creds, &login); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	c.token = login.Token
	logger.Info("logged in", zap.String("user", username))

	room := join
	if create {
		var out struct {
			RoomCode string `json:"room_code"`
		}
		if err := c.call("/create_room", nil, &out); err != nil {
			return fmt.Errorf("create room: %w", err)
		}
		room = out.RoomCode
		logger.Info("room created", zap.String("room", room))
	} else if join != "" {
		var snapshot json.RawMessage
		if err := c.call("/join_room_route", map[string]string{"room_code": join}, &snapshot); err != nil {
			return fmt.Errorf("join room: %w", err)
		}
	}

	if room != "" {
		var snapshot json.RawMessage
		if err := c.call("/get_room_data", map[string]string{"room_code": room}, &snapshot); err != nil {
			return fmt.Errorf("room data: %w", err)
		}
		fmt.Println(string(snapshot))
	}
	return nil
}

func (c *client) serverKey() (string, error) {
	resp, err := c.http.Get(c.base + "/public_key")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	var out struct {
		PublicKey string `json:"public_key"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding server key: %w", err)
	}
	return out.PublicKey, nil
}

// call posts payload sealed for the server and opens the sealed reply into dst.
func (c *client) call(path string, payload any, dst any) error {
	var body io.Reader = http.NoBody
	if payload != nil {
		env, err := c.session.Seal(payload)
		if err != nil {
			return err
		}
		data, err := json.Marshal(env)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(http.MethodPost, c.base+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 300 {
		var failure struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &failure)
		return fmt.Errorf("%s: %s", resp.Status, failure.Error)
	}
	return c.session.OpenInto(data, dst)
}
