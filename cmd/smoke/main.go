// Smoke-прогон живого API: добавить книгу, купить, получить токен доступа
// и скачать файл обоими путями. Падает при первом расхождении.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"time"
)

func main() {
	base := os.Getenv("ALEMKITAP_API_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	client := &http.Client{Timeout: 30 * time.Second}

	admin := obtainToken(client, base, "smoke-admin", []string{"admin"})
	reader := obtainToken(client, base, "smoke-reader", nil)

	bookID := uploadBook(client, base, admin)
	log.Printf("uploaded book %s", bookID)

	// До покупки шлюз обязан отказать.
	status := getStatus(client, base+"/v1/content/"+bookID, reader)
	if status != http.StatusForbidden {
		log.Fatalf("pre-purchase access: expected 403, got %d", status)
	}

	mustPost(client, base+"/v1/books/"+bookID+"/buy", nil, reader, http.StatusCreated)

	body := mustGet(client, base+"/v1/content/"+bookID, reader)
	if !bytes.HasPrefix(body, []byte("%PDF")) {
		log.Fatalf("session stream is not a PDF: %q", body[:min(16, len(body))])
	}

	var issued struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	resp := mustPost(client, base+"/v1/content/"+bookID+"/token", nil, reader, http.StatusOK)
	if err := json.Unmarshal(resp, &issued); err != nil {
		log.Fatalf("decode token response: %v", err)
	}
	if issued.Token == "" {
		log.Fatal("empty access token")
	}

	body = mustGet(client, base+"/v1/content/by-token/"+issued.Token, "")
	if !bytes.HasPrefix(body, []byte("%PDF")) {
		log.Fatalf("token stream is not a PDF: %q", body[:min(16, len(body))])
	}

	fmt.Println("✅ alemkitap smoke test passed")
}

func obtainToken(client *http.Client, base, user string, roles []string) string {
	payload, _ := json.Marshal(map[string]any{"user": user, "roles": roles})
	resp, err := client.Post(base+"/v1/auth/token", "application/json", bytes.NewReader(payload))
	if err != nil {
		log.Fatalf("obtain token: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("obtain token for %s: status %d", user, resp.StatusCode)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		log.Fatalf("decode token: %v", err)
	}
	return out.Token
}

func uploadBook(client *http.Client, base, adminToken string) string {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("title", fmt.Sprintf("Smoke %d", time.Now().Unix()))
	_ = mw.WriteField("price_minor", "100")
	fw, err := mw.CreateFormFile("file", "smoke.pdf")
	if err != nil {
		log.Fatalf("form file: %v", err)
	}
	_, _ = fw.Write([]byte("%PDF-1.4 smoke\n"))
	_ = mw.Close()

	req, err := http.NewRequest(http.MethodPost, base+"/v1/admin/books", &buf)
	if err != nil {
		log.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+adminToken)
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("upload book: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		log.Fatalf("upload book: status %d", resp.StatusCode)
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		log.Fatalf("decode upload response: %v", err)
	}
	return out.ID
}

func mustPost(client *http.Client, url string, body []byte, token string, want int) []byte {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		log.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != want {
		log.Fatalf("POST %s: expected %d, got %d (%s)", url, want, resp.StatusCode, data)
	}
	return data
}

func mustGet(client *http.Client, url, token string) []byte {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		log.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("GET %s: expected 200, got %d (%s)", url, resp.StatusCode, data)
	}
	return data
}

func getStatus(client *http.Client, url, token string) int {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		log.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode
}
