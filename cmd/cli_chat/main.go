package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"nutricoach-api/internal/config"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	reader := bufio.NewReader(os.Stdin)
	client := newAPIClient(cfg.APIBaseURL, time.Duration(cfg.LLMTimeoutSeconds+5)*time.Second)

	for {
		fmt.Println("===== NutriCoach CLI =====")
		username := prompt(reader, "Usuario: ")
		password := prompt(reader, "Password: ")
		res, err := client.Login(username, password)
		if err != nil {
			fmt.Printf("Login fallido: %v\n", err)
			continue
		}
		fmt.Printf("Hola %s (%s)\n", res.User.Username, res.User.ID)
		break
	}

	if err := chatLoop(reader, os.Stdout, client); err != nil {
		log.Printf("error en chat: %v", err)
	}
	if err := client.Logout(); err != nil {
		log.Printf("logout: %v", err)
	}
}

func prompt(reader *bufio.Reader, label string) string {
	fmt.Print(label)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

const helpText = `Comandos: /new /clear /history /threads /switch <id> /quit`

// chatLoop lee líneas hasta /quit o EOF. Las líneas sin "/" se envían como mensaje.
func chatLoop(reader *bufio.Reader, out io.Writer, client *apiClient) error {
	fmt.Fprintln(out, helpText)
	for {
		fmt.Fprint(out, "Tu > ")
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("leer input: %w", err)
		}
		eof := errors.Is(err, io.EOF)
		text := strings.TrimSpace(line)

		if text != "" {
			if quit := runCommand(out, client, text); quit {
				return nil
			}
		}
		if eof {
			return nil
		}
	}
}

func runCommand(out io.Writer, client *apiClient, text string) bool {
	fields := strings.Fields(text)
	switch fields[0] {
	case "/quit", "/exit":
		fmt.Fprintln(out, "Saliendo...")
		return true
	case "/help":
		fmt.Fprintln(out, helpText)
	case "/new":
		id, err := client.NewThread()
		if err != nil {
			fmt.Fprintf(out, "error creando thread: %v\n", err)
			return false
		}
		fmt.Fprintf(out, "Nuevo thread %s\n", id)
	case "/clear":
		if err := client.Clear(); err != nil {
			fmt.Fprintf(out, "error limpiando historial: %v\n", err)
			return false
		}
		fmt.Fprintln(out, "Historial borrado.")
	case "/history":
		h, err := client.History()
		if err != nil {
			fmt.Fprintf(out, "error leyendo historial: %v\n", err)
			return false
		}
		fmt.Fprintf(out, "Thread %s (%d mensajes)\n", h.ThreadID, h.TotalMessages)
		for _, m := range h.Messages {
			fmt.Fprintf(out, "[%s] %s: %s\n", m.Timestamp.Local().Format("15:04:05"), m.Role, m.Content)
		}
	case "/threads":
		list, err := client.Threads()
		if err != nil {
			fmt.Fprintf(out, "error listando threads: %v\n", err)
			return false
		}
		for _, t := range list.Threads {
			marker := " "
			if t.Current {
				marker = "*"
			}
			fmt.Fprintf(out, "%s %s (%s)\n", marker, t.ThreadID, t.CreatedAt.Local().Format(time.DateTime))
		}
	case "/switch":
		if len(fields) < 2 {
			fmt.Fprintln(out, "uso: /switch <thread_id>")
			return false
		}
		id, err := client.SwitchThread(fields[1])
		if err != nil {
			fmt.Fprintf(out, "error cambiando thread: %v\n", err)
			return false
		}
		fmt.Fprintf(out, "Thread actual %s\n", id)
	default:
		if strings.HasPrefix(fields[0], "/") {
			fmt.Fprintln(out, helpText)
			return false
		}
		res, err := client.Send(text)
		if err != nil {
			fmt.Fprintf(out, "error enviando mensaje: %v\n", err)
			return false
		}
		fmt.Fprintf(out, "Coach > %s\n", res.Response)
	}
	return false
}
