package examclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bridge4er/examhall/internal/model"
)

// Login exchanges credentials for a bearer token at the auth endpoint.
func Login(ctx context.Context, baseURL, email, password string) (string, error) {
	body, err := json.Marshal(model.LoginRequest{Email: email, Password: password})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read login response: %w", err)
	}

	var env struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
		Error *errorBody `json:"error"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if env.Error != nil {
			return "", fmt.Errorf("login failed: %s", env.Error.Message)
		}
		return "", fmt.Errorf("login failed: server returned %d", resp.StatusCode)
	}
	if env.Data.Token == "" {
		return "", fmt.Errorf("login succeeded but no token returned")
	}
	return env.Data.Token, nil
}
