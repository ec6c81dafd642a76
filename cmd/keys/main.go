package main

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/dropDatabas3/custodia/internal/signer"
	"github.com/dropDatabas3/custodia/internal/util/atomicwrite"
)

func main() {
	var (
		flagEnvFile = flag.String("env-file", ".env", "ruta a .env")
		flagKeyPath = flag.String("key", "", "ruta de la clave de firma (fallback: $CUSTODIA_SIGNING_KEY)")
		cmdGenerate = flag.Bool("generate", false, "genera una clave de firma nueva de 32 bytes")
		cmdInspect  = flag.Bool("inspect", false, "muestra tamaño y fingerprint de la clave")
		flagForce   = flag.Bool("force", false, "sobrescribe la clave existente (¡invalida todas las firmas previas!)")
	)
	flag.Parse()

	if *flagEnvFile != "" {
		_ = godotenv.Load(*flagEnvFile)
	}

	keyPath := *flagKeyPath
	if keyPath == "" {
		keyPath = os.Getenv("CUSTODIA_SIGNING_KEY")
	}

	switch {
	case *cmdGenerate:
		if keyPath == "" {
			log.Fatal("falta -key o CUSTODIA_SIGNING_KEY")
		}
		if _, err := os.Stat(keyPath); err == nil && !*flagForce {
			log.Fatalf("ya existe %s (usar -force para rotar; las firmas previas dejarán de verificar)", keyPath)
		}
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			log.Fatalf("generar clave: %v", err)
		}
		if err := atomicwrite.AtomicWriteFile(keyPath, key, 0o600); err != nil {
			log.Fatalf("escribir clave: %v", err)
		}
		fmt.Printf("Clave de 32 bytes escrita en %s\n", keyPath)

	case *cmdInspect:
		if keyPath == "" {
			log.Fatal("falta -key o CUSTODIA_SIGNING_KEY")
		}
		b, err := os.ReadFile(keyPath)
		if err != nil {
			log.Fatalf("leer clave: %v", err)
		}
		s, err := signer.New(signer.Options{KeyPath: keyPath})
		if err != nil {
			log.Fatalf("signer: %v", err)
		}
		fmt.Printf("path=%s\n", keyPath)
		fmt.Printf("bytes=%d (%d bits)\n", len(b), len(b)*8)
		fmt.Printf("sha256=%s\n", hex.EncodeToString(sum256(b)))
		fmt.Printf("verifying_key=%s\n", s.VerifyingKey())

	default:
		fmt.Println("usage:")
		fmt.Println("  keys -generate -key data/signing.key [-force]")
		fmt.Println("  keys -inspect -key data/signing.key")
	}
}

func sum256(b []byte) []byte {
	h := sha256.Sum256(b)
	return h[:]
}
