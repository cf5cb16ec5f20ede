package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/debemdeboas/composer/internal/auth"
)

func main() {
	dir := flag.String("dir", ".", "directory for privkey.pem and pubkey.pem")
	sign := flag.Bool("sign", false, "after loading the key, sign payloads read from stdin")
	flag.Parse()

	promptStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)
	outputStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	privPath := filepath.Join(*dir, "privkey.pem")
	pubPath := filepath.Join(*dir, "pubkey.pem")

	signer, pubPEM, err := loadOrGenerate(privPath, pubPath)
	if err != nil {
		fmt.Println(errorStyle.Render("Error: " + err.Error()))
		os.Exit(1)
	}
	fmt.Println(outputStyle.Render("Signing key: " + privPath))
	fmt.Println(outputStyle.Render("Public key:  " + pubPath))

	if !*sign {
		return
	}

	fmt.Println("Enter payloads one by one. Type 'quit' to exit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(promptStyle.Render("Payload: "))
		if !scanner.Scan() {
			break
		}

		payload := strings.TrimSpace(scanner.Text())
		if payload == "" {
			continue
		}
		if payload == "quit" {
			break
		}

		sig := signer.Sign([]byte(payload))
		if ok, err := auth.Verify(pubPEM, []byte(payload), sig); err != nil || !ok {
			fmt.Println(errorStyle.Render("Error: signature does not verify"))
			continue
		}
		fmt.Println(outputStyle.Render(auth.SignatureHeader + ": " + sig))
	}

	if err := scanner.Err(); err != nil {
		fmt.Println("Error reading input:", err)
	}
}

// loadOrGenerate reuses an existing private key or writes a fresh key pair.
func loadOrGenerate(privPath, pubPath string) (*auth.Signer, []byte, error) {
	if _, err := os.Stat(privPath); err == nil {
		signer, err := auth.LoadSigner(privPath)
		if err != nil {
			return nil, nil, err
		}
		pubPEM, err := signer.PublicKeyPEM()
		if err != nil {
			return nil, nil, err
		}
		return signer, pubPEM, os.WriteFile(pubPath, pubPEM, 0o644)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, nil, err
	}

	privPEM, pubPEM, err := auth.GenerateKeyPEM()
	if err != nil {
		return nil, nil, err
	}
	if err := os.WriteFile(privPath, privPEM, 0o600); err != nil {
		return nil, nil, err
	}
	if err := os.WriteFile(pubPath, pubPEM, 0o644); err != nil {
		return nil, nil, err
	}

	signer, err := auth.ParseSigner(privPEM)
	if err != nil {
		return nil, nil, err
	}
	return signer, pubPEM, nil
}
