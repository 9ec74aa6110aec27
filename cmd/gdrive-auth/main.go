// Command gdrive-auth obtiene el refresh token que el snapshot store de
// gdrive necesita. Corre una vez, autoriza en el navegador y copia las
// variables que imprime al entorno del daemon.
package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drive "google.golang.org/api/drive/v3"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	ctx := context.Background()

	clientID := mustEnv("GDRIVE_CLIENT_ID")
	clientSecret := mustEnv("GDRIVE_CLIENT_SECRET")

	// Callback local en un puerto libre
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	defer ln.Close()

	port := ln.Addr().(*net.TCPAddr).Port
	redirectURL := fmt.Sprintf("http://127.0.0.1:%d/callback", port)

	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{drive.DriveFileScope}, // sólo escribir lo nuestro
		RedirectURL:  redirectURL,
	}

	state := randomState()
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "invalid state", http.StatusBadRequest)
			errCh <- fmt.Errorf("invalid state")
			return
		}
		if e := q.Get("error"); e != "" {
			http.Error(w, "auth error: "+e, http.StatusBadRequest)
			errCh <- fmt.Errorf("auth error: %s", e)
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			errCh <- fmt.Errorf("missing code")
			return
		}

		fmt.Fprintln(w, "OK. Ya puedes cerrar esta ventana y volver a la terminal.")
		codeCh <- code
	})

	srv := &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		_ = srv.Serve(ln)
	}()
	defer srv.Close()

	// access_type=offline + prompt=consent fuerzan la entrega del refresh token
	authURL := conf.AuthCodeURL(
		state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)

	fmt.Println("\nAbre esta URL en tu navegador:")
	fmt.Println()
	fmt.Println(authURL)
	fmt.Println("\nEsperando autorización en:", redirectURL)

	var code string
	select {
	case code = <-codeCh:
	case err := <-errCh:
		return err
	case <-time.After(3 * time.Minute):
		return fmt.Errorf("timeout esperando autorización")
	}

	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return err
	}

	// Sin prompt=consent Google puede omitir el refresh token si la app ya
	// fue autorizada antes.
	if strings.TrimSpace(tok.RefreshToken) == "" {
		fmt.Println("\nNo llegó refresh_token.")
		fmt.Println("Revoca el acceso previo de la app y vuelve a correr este comando:")
		fmt.Println("https://myaccount.google.com/permissions")
		return nil
	}

	fmt.Println("\nListo. Entorno para argusd:")
	fmt.Println()
	fmt.Println("export STORAGE_PROVIDER=gdrive")
	fmt.Printf("export GDRIVE_CLIENT_ID=%s\n", clientID)
	fmt.Printf("export GDRIVE_CLIENT_SECRET=%s\n", clientSecret)
	fmt.Printf("export GDRIVE_REFRESH_TOKEN=%s\n", tok.RefreshToken)
	return nil
}

func mustEnv(k string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		panic("missing env: " + k)
	}
	return v
}

func randomState() string {
	b := make([]byte, 18)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
