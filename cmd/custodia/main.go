package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type client struct {
	BaseURL   string
	OutFormat string // "json" | "text"
	HTTP      *http.Client
}

func (c *client) do(method, path string, body []byte) (int, []byte, error) {
	url := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

func (c *client) print(status int, body []byte) {
	if c.OutFormat == "json" {
		var v any
		if json.Unmarshal(body, &v) == nil {
			p, _ := json.MarshalIndent(v, "", "  ")
			fmt.Println(string(p))
			return
		}
	}
	if len(body) > 0 {
		fmt.Println(string(body))
	} else {
		fmt.Printf("status=%d\n", status)
	}
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func main() {
	var (
		baseURL = envOr("CUSTODIA_URL", "http://localhost:8080")
		out     = envOr("CUSTODIA_OUT", "text")
		timeout = 30 * time.Second
	)

	root := &cobra.Command{
		Use:   "custodia",
		Short: "CLI para el vault de certificados Custodia (vía /v1)",
	}

	root.PersistentFlags().StringVar(&baseURL, "url", baseURL, "URL base del servicio (env CUSTODIA_URL)")
	root.PersistentFlags().StringVar(&out, "out", out, "Formato de salida: json|text")

	httpClient := &http.Client{Timeout: timeout}
	cl := &client{BaseURL: baseURL, OutFormat: out, HTTP: httpClient}

	// mint: emite un certificado desde un payload JSON
	var mintWorker, mintPayloadFile, mintArtifact, mintEmail string
	var mintBroadcast bool
	mintCmd := &cobra.Command{
		Use:   "mint",
		Short: "Firmar un payload y registrar el certificado en el vault",
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw []byte
			var err error
			if mintPayloadFile == "-" || mintPayloadFile == "" {
				raw, err = io.ReadAll(os.Stdin)
			} else {
				raw, err = os.ReadFile(mintPayloadFile)
			}
			if err != nil {
				return fmt.Errorf("leer payload: %w", err)
			}
			var payload map[string]any
			if err := json.Unmarshal(raw, &payload); err != nil {
				return fmt.Errorf("payload no es JSON válido: %w", err)
			}

			req := map[string]any{
				"worker_id": mintWorker,
				"payload":   payload,
				"broadcast": mintBroadcast,
			}
			if mintArtifact != "" {
				req["artifact_path"] = mintArtifact
			}
			if mintEmail != "" {
				req["notify_email"] = mintEmail
			}
			b, _ := json.Marshal(req)

			status, body, err := cl.do("POST", "/v1/certificates", b)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("mint falló: status=%d body=%s", status, string(body))
			}
			cl.print(status, body)
			return nil
		},
	}
	mintCmd.Flags().StringVar(&mintWorker, "worker", "cli", "Worker id que emite")
	mintCmd.Flags().StringVar(&mintPayloadFile, "payload", "-", "Archivo JSON con el payload (- = stdin)")
	mintCmd.Flags().StringVar(&mintArtifact, "artifact", "", "Ruta del artefacto renderizado (opcional)")
	mintCmd.Flags().StringVar(&mintEmail, "email", "", "Email a notificar (opcional)")
	mintCmd.Flags().BoolVar(&mintBroadcast, "broadcast", false, "Broadcastear al enjambre tras emitir")

	// verify: payload+firma
	var verPayloadFile, verSignature, verSerial, verReceipt string
	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Verificar una firma (payload+signature) o un receipt token",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]any{}
			switch {
			case verReceipt != "" && verSerial != "":
				req["dals_serial"] = verSerial
				req["receipt_token"] = verReceipt
			case verSignature != "":
				var raw []byte
				var err error
				if verPayloadFile == "-" || verPayloadFile == "" {
					raw, err = io.ReadAll(os.Stdin)
				} else {
					raw, err = os.ReadFile(verPayloadFile)
				}
				if err != nil {
					return fmt.Errorf("leer payload: %w", err)
				}
				var payload map[string]any
				if err := json.Unmarshal(raw, &payload); err != nil {
					return fmt.Errorf("payload no es JSON válido: %w", err)
				}
				req["payload"] = payload
				req["signature"] = verSignature
			default:
				return fmt.Errorf("se requiere --signature (con --payload) o --serial + --receipt")
			}
			b, _ := json.Marshal(req)

			status, body, err := cl.do("POST", "/v1/certificates/verify", b)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("verify falló: status=%d body=%s", status, string(body))
			}
			cl.print(status, body)
			return nil
		},
	}
	verifyCmd.Flags().StringVar(&verPayloadFile, "payload", "-", "Archivo JSON con el payload (- = stdin)")
	verifyCmd.Flags().StringVar(&verSignature, "signature", "", "Firma hex a verificar")
	verifyCmd.Flags().StringVar(&verSerial, "serial", "", "Serial del certificado (modo receipt)")
	verifyCmd.Flags().StringVar(&verReceipt, "receipt", "", "Receipt token (modo receipt)")

	summaryCmd := &cobra.Command{
		Use:   "summary <serial>",
		Short: "Mostrar el summary de un certificado",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do("GET", "/v1/certificates/"+args[0], nil)
			if err != nil {
				return err
			}
			cl.print(status, body)
			if status/100 != 2 {
				os.Exit(1)
			}
			return nil
		},
	}

	historyCmd := &cobra.Command{
		Use:   "history <serial>",
		Short: "Mostrar el historial de eventos de un serial",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do("GET", "/v1/certificates/"+args[0]+"/history", nil)
			if err != nil {
				return err
			}
			// 404 con body estructurado (status=not_found) también se imprime
			cl.print(status, body)
			return nil
		},
	}

	broadcastCmd := &cobra.Command{
		Use:   "broadcast <serial>",
		Short: "Re-broadcastear un certificado ya emitido al enjambre",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do("POST", "/v1/certificates/"+args[0]+"/broadcast", []byte(`{}`))
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("broadcast falló: status=%d body=%s", status, string(body))
			}
			cl.print(status, body)
			return nil
		},
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Estadísticas del vault (conteos + fingerprint)",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do("GET", "/v1/vault/stats", nil)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("stats falló: status=%d body=%s", status, string(body))
			}
			cl.print(status, body)
			return nil
		},
	}

	root.AddCommand(mintCmd, verifyCmd, summaryCmd, historyCmd, broadcastCmd, statsCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
