package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment variables")
	}

	dsn := os.Getenv("ARCHIVER_DATABASE_DSN")
	if dsn == "" {
		log.Fatal("ARCHIVER_DATABASE_DSN environment variable is required")
	}

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer conn.Close()

	if err := conn.Ping(); err != nil {
		log.Fatalf("failed to ping database: %v", err)
	}

	if err := goose.Run(command, conn, "db/migrations"); err != nil {
		log.Fatalf("goose %s failed: %v", command, err)
	}

	fmt.Printf("goose %s completed\n", command)
}
