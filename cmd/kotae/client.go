package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hyperjump/kotae/internal/cli"
	"github.com/hyperjump/kotae/internal/models"
)

// Asking waits on a completion, so the client allows longer than the server's own timeout.
var httpClient = &http.Client{Timeout: 120 * time.Second}

func askViaHTTP(serverURL, question string) (*models.AnswerResponse, error) {
	body, err := json.Marshal(models.QueryRequest{Query: question})
	if err != nil {
		return nil, err
	}
	var resp models.AnswerResponse
	if err := doJSON(http.MethodPost, serverURL+"/ask-query", body, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func statusViaHTTP(serverURL string) (map[string]interface{}, error) {
	var status map[string]interface{}
	if err := doJSON(http.MethodGet, serverURL+"/api/v1/status", nil, http.StatusOK, &status); err != nil {
		return nil, err
	}
	return status, nil
}

func chunksViaHTTP(serverURL string) (*cli.ChunkList, error) {
	var list cli.ChunkList
	if err := doJSON(http.MethodGet, serverURL+"/debug/chunks", nil, http.StatusOK, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func watchAddViaHTTP(serverURL, path string, syncExisting bool) error {
	body, err := json.Marshal(map[string]interface{}{"path": path, "sync": syncExisting})
	if err != nil {
		return err
	}
	return doJSON(http.MethodPost, serverURL+"/api/v1/watch/directories", body, http.StatusCreated, nil)
}

func watchRemoveViaHTTP(serverURL, path string) error {
	target := serverURL + "/api/v1/watch/directories?path=" + url.QueryEscape(path)
	return doJSON(http.MethodDelete, target, nil, http.StatusOK, nil)
}

func watchListViaHTTP(serverURL string) ([]string, error) {
	var out struct {
		Directories []string `json:"directories"`
	}
	if err := doJSON(http.MethodGet, serverURL+"/api/v1/watch/directories", nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out.Directories, nil
}

// doJSON sends body (when non-nil) as JSON and decodes the response into out (when non-nil).
// A status other than want is an error carrying the server's message.
func doJSON(method, target string, body []byte, want int, out interface{}) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, strings.TrimRight(target, "/"), rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// normalizeJSON round-trips v through JSON.
func normalizeJSON(v map[string]interface{}) (map[string]interface{}, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
