package pipeline

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/resumeforge/pipeline/pkg/models"
)

// ArtifactStore persists versioned stage outputs to the pgx-managed
// session_artifacts table. Artifacts are append-only: Put always inserts a
// new version rather than overwriting, following the migration's
// composite-key-plus-version layout, so an earlier stage's output remains
// inspectable even after a revision cycle supersedes it.
type ArtifactStore struct {
	db *sql.DB
}

// NewArtifactStore creates a store bound to db's session_artifacts table.
func NewArtifactStore(db *sql.DB) *ArtifactStore {
	return &ArtifactStore{db: db}
}

// Put inserts the next version of (sessionID, nodeKey, artifactType) and
// returns the version number assigned.
func (s *ArtifactStore) Put(ctx context.Context, sessionID, nodeKey, artifactType string, payload map[string]any) (int, error) {
	content, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("artifact store: failed to marshal payload: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("artifact store: failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var nextVersion int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM session_artifacts
		 WHERE session_id = $1 AND node_key = $2 AND artifact_type = $3`,
		sessionID, nodeKey, artifactType,
	).Scan(&nextVersion)
	if err != nil {
		return 0, fmt.Errorf("artifact store: failed to compute next version: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO session_artifacts (session_id, node_key, artifact_type, version, content)
		 VALUES ($1, $2, $3, $4, $5)`,
		sessionID, nodeKey, artifactType, nextVersion, content,
	); err != nil {
		return 0, fmt.Errorf("artifact store: failed to insert artifact: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("artifact store: failed to commit artifact insert: %w", err)
	}
	return nextVersion, nil
}

// Latest returns the highest-versioned artifact for (sessionID, nodeKey,
// artifactType), or sql.ErrNoRows if none exists yet.
func (s *ArtifactStore) Latest(ctx context.Context, sessionID, nodeKey, artifactType string) (*models.Artifact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT version, content, created_at FROM session_artifacts
		 WHERE session_id = $1 AND node_key = $2 AND artifact_type = $3
		 ORDER BY version DESC LIMIT 1`,
		sessionID, nodeKey, artifactType,
	)

	var (
		version int
		raw     []byte
		art     models.Artifact
	)
	if err := row.Scan(&version, &raw, &art.CreatedAt); err != nil {
		return nil, err
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("artifact store: failed to unmarshal payload: %w", err)
	}

	art.SessionID = sessionID
	art.NodeKey = nodeKey
	art.ArtifactType = artifactType
	art.Version = version
	art.Payload = payload
	return &art, nil
}

// History returns every version of (sessionID, nodeKey, artifactType),
// oldest first.
func (s *ArtifactStore) History(ctx context.Context, sessionID, nodeKey, artifactType string) ([]*models.Artifact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT version, content, created_at FROM session_artifacts
		 WHERE session_id = $1 AND node_key = $2 AND artifact_type = $3
		 ORDER BY version ASC`,
		sessionID, nodeKey, artifactType,
	)
	if err != nil {
		return nil, fmt.Errorf("artifact store: failed to query artifact history: %w", err)
	}
	defer rows.Close()

	var out []*models.Artifact
	for rows.Next() {
		var (
			version int
			raw     []byte
			art     models.Artifact
		)
		if err := rows.Scan(&version, &raw, &art.CreatedAt); err != nil {
			return nil, fmt.Errorf("artifact store: failed to scan artifact row: %w", err)
		}
		var payload map[string]any
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("artifact store: failed to unmarshal payload: %w", err)
		}
		art.SessionID = sessionID
		art.NodeKey = nodeKey
		art.ArtifactType = artifactType
		art.Version = version
		art.Payload = payload
		out = append(out, &art)
	}
	return out, rows.Err()
}
