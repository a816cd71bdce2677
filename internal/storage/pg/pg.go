package pg

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/friendlychat-dev/friendlychat/internal/config"

	_ "github.com/lib/pq"
)

// Storage is the Postgres-backed remote feed source. connStr is kept
// around because the LISTEN/NOTIFY subscription needs its own
// dedicated connection.
type Storage struct {
	db      *sql.DB
	cfg     *config.Config
	connStr string
}

func New(cfg *config.Config) (*Storage, error) {
	log.Print("Connecting to db")
	connStr := ConnString(&cfg.Private.Pg)
	db, err := Connect(connStr)
	if err != nil {
		return nil, err
	}
	log.Print("Succesfully connected to db")
	return &Storage{db: db, cfg: cfg, connStr: connStr}, nil
}

func ConnString(pg *config.Pg) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		pg.Host, pg.Port, pg.User, pg.Password, pg.Dbname)
}

func Connect(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return db, nil
}

func (s *Storage) Cleanup() error {
	return s.db.Close()
}
