// Package registry persists a leader broker's cluster membership so that a
// restarted leader does not forget the peers it had already admitted. It is
// adapted from the teacher's SQLite-backed broker/partition bookkeeping;
// here it tracks only the ordered peer list that spec.md's ownership
// function indexes into.
package registry

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/AAAlex-123/Yamca/internal/wire"
)

// Store is a SQLite-backed record of the peers a leader broker has admitted,
// in admission order (the same order Broker.Cluster indexes into for
// spec.md's ownership function).
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the registry database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("registry: open %q: %w", path, err)
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS peers (
		position INTEGER PRIMARY KEY AUTOINCREMENT,
		address  TEXT NOT NULL,
		port     INTEGER NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("registry: init schema: %w", err)
	}
	return nil
}

// AppendPeer records a newly-admitted peer at the end of the ordered list.
func (s *Store) AppendPeer(ci wire.ConnectionInfo) error {
	_, err := s.db.Exec(`INSERT INTO peers (address, port) VALUES (?, ?)`, ci.Address, ci.Port)
	if err != nil {
		return fmt.Errorf("registry: append peer %s: %w", ci, err)
	}
	return nil
}

// Peers returns every admitted peer, ordered by admission time.
func (s *Store) Peers() ([]wire.ConnectionInfo, error) {
	rows, err := s.db.Query(`SELECT address, port FROM peers ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("registry: list peers: %w", err)
	}
	defer rows.Close()

	var peers []wire.ConnectionInfo
	for rows.Next() {
		var ci wire.ConnectionInfo
		if err := rows.Scan(&ci.Address, &ci.Port); err != nil {
			return nil, fmt.Errorf("registry: scan peer: %w", err)
		}
		peers = append(peers, ci)
	}
	return peers, rows.Err()
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
