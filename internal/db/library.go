package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mescon/Melodarr/internal/domain"
)

// =============================================================================
// Tracks
// =============================================================================

// GetTrackByPath returns the indexed track for a normalized path,
// or (nil, nil) when the path has never been indexed.
func (r *Repository) GetTrackByPath(path string) (*domain.Track, error) {
	row := r.DB.QueryRow(`
		SELECT id, path, artist, album_artist, album, title, genre, year,
		       track_number, disc_number, size_bytes, mod_time, last_indexed_at,
		       created_at, updated_at
		FROM tracks WHERE path = ?`, path)

	t, err := scanTrack(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get track by path: %w", err)
	}
	return t, nil
}

// UpsertTrack inserts or updates a track row keyed by path and stamps
// last_indexed_at with indexedAt.
func (r *Repository) UpsertTrack(t *domain.Track, indexedAt time.Time) error {
	_, err := ExecWithRetry(r.DB, `
		INSERT INTO tracks (path, artist, album_artist, album, title, genre, year,
		                    track_number, disc_number, size_bytes, mod_time,
		                    last_indexed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(path) DO UPDATE SET
			artist = excluded.artist,
			album_artist = excluded.album_artist,
			album = excluded.album,
			title = excluded.title,
			genre = excluded.genre,
			year = excluded.year,
			track_number = excluded.track_number,
			disc_number = excluded.disc_number,
			size_bytes = excluded.size_bytes,
			mod_time = excluded.mod_time,
			last_indexed_at = excluded.last_indexed_at,
			updated_at = CURRENT_TIMESTAMP`,
		t.Path, t.Artist, t.AlbumArtist, t.Album, t.Title, t.Genre, t.Year,
		t.TrackNumber, t.DiscNumber, t.SizeBytes,
		t.ModTime.UTC().Format(time.RFC3339Nano),
		indexedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to upsert track: %w", err)
	}
	return nil
}

// TouchTrack refreshes last_indexed_at for an unchanged track so removal
// detection sees it as observed in the current scan.
func (r *Repository) TouchTrack(path string, indexedAt time.Time) error {
	_, err := ExecWithRetry(r.DB,
		"UPDATE tracks SET last_indexed_at = ? WHERE path = ?",
		indexedAt.UTC().Format(time.RFC3339Nano), path)
	if err != nil {
		return fmt.Errorf("failed to touch track: %w", err)
	}
	return nil
}

// AllTrackPaths returns every indexed track path.
func (r *Repository) AllTrackPaths() ([]string, error) {
	rows, err := QueryWithRetry(r.DB, "SELECT path FROM tracks ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("failed to query track paths: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan track path: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// RemoveTracks deletes the given paths from the index and returns how many
// rows were actually removed.
func (r *Repository) RemoveTracks(paths []string) (int64, error) {
	if len(paths) == 0 {
		return 0, nil
	}

	tx, err := r.DB.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.Prepare("DELETE FROM tracks WHERE path = ?")
	if err != nil {
		return 0, fmt.Errorf("failed to prepare delete: %w", err)
	}
	defer stmt.Close()

	var removed int64
	for _, p := range paths {
		res, err := stmt.Exec(p)
		if err != nil {
			return 0, fmt.Errorf("failed to delete track %s: %w", p, err)
		}
		n, _ := res.RowsAffected()
		removed += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit track removal: %w", err)
	}
	tx = nil
	return removed, nil
}

// CountTracks returns the number of indexed tracks.
func (r *Repository) CountTracks() (int64, error) {
	var count int64
	if err := r.DB.QueryRow("SELECT COUNT(*) FROM tracks").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count tracks: %w", err)
	}
	return count, nil
}

// ListTracks returns a page of tracks ordered by path.
func (r *Repository) ListTracks(limit, offset int) ([]domain.Track, error) {
	rows, err := QueryWithRetry(r.DB, `
		SELECT id, path, artist, album_artist, album, title, genre, year,
		       track_number, disc_number, size_bytes, mod_time, last_indexed_at,
		       created_at, updated_at
		FROM tracks ORDER BY path LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracks: %w", err)
	}
	defer rows.Close()

	var tracks []domain.Track
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}
		tracks = append(tracks, *t)
	}
	return tracks, rows.Err()
}

// SearchTracks returns tracks whose artist, album or title matches the query.
func (r *Repository) SearchTracks(query string, limit int) ([]domain.Track, error) {
	like := "%" + query + "%"
	rows, err := QueryWithRetry(r.DB, `
		SELECT id, path, artist, album_artist, album, title, genre, year,
		       track_number, disc_number, size_bytes, mod_time, last_indexed_at,
		       created_at, updated_at
		FROM tracks
		WHERE artist LIKE ? OR album LIKE ? OR title LIKE ?
		ORDER BY artist, album, disc_number, track_number
		LIMIT ?`, like, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search tracks: %w", err)
	}
	defer rows.Close()

	var tracks []domain.Track
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}
		tracks = append(tracks, *t)
	}
	return tracks, rows.Err()
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanTrack.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTrack(row rowScanner) (*domain.Track, error) {
	var t domain.Track
	var modTime, lastIndexed, createdAt, updatedAt string
	err := row.Scan(&t.ID, &t.Path, &t.Artist, &t.AlbumArtist, &t.Album, &t.Title,
		&t.Genre, &t.Year, &t.TrackNumber, &t.DiscNumber, &t.SizeBytes,
		&modTime, &lastIndexed, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	t.ModTime = parseDBTime(modTime)
	t.LastIndexedAt = parseDBTime(lastIndexed)
	t.CreatedAt = parseDBTime(createdAt)
	t.UpdatedAt = parseDBTime(updatedAt)
	return &t, nil
}

// parseDBTime parses timestamps produced both by Go (RFC3339Nano) and by
// SQLite's CURRENT_TIMESTAMP ("2006-01-02 15:04:05").
func parseDBTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// =============================================================================
// Library roots
// =============================================================================

// AddLibraryRoot registers a directory for scanning.
func (r *Repository) AddLibraryRoot(profileID, path string) (int64, error) {
	res, err := ExecWithRetry(r.DB,
		"INSERT INTO library_roots (profile_id, path) VALUES (?, ?)", profileID, path)
	if err != nil {
		return 0, fmt.Errorf("failed to add library root: %w", err)
	}
	return res.LastInsertId()
}

// ListLibraryRoots returns the enabled roots for a profile.
func (r *Repository) ListLibraryRoots(profileID string) ([]domain.LibraryRoot, error) {
	rows, err := QueryWithRetry(r.DB, `
		SELECT id, profile_id, path, enabled, created_at
		FROM library_roots WHERE profile_id = ? AND enabled = 1 ORDER BY path`, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to list library roots: %w", err)
	}
	defer rows.Close()

	var roots []domain.LibraryRoot
	for rows.Next() {
		var root domain.LibraryRoot
		var createdAt string
		if err := rows.Scan(&root.ID, &root.ProfileID, &root.Path, &root.Enabled, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan library root: %w", err)
		}
		root.CreatedAt = parseDBTime(createdAt)
		roots = append(roots, root)
	}
	return roots, rows.Err()
}

// RemoveLibraryRoot deletes a root by ID.
func (r *Repository) RemoveLibraryRoot(id int64) error {
	res, err := ExecWithRetry(r.DB, "DELETE FROM library_roots WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to remove library root: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// =============================================================================
// Blacklist
// =============================================================================

// AddBlacklistEntry registers a directory subtree to exclude from scanning.
func (r *Repository) AddBlacklistEntry(profileID, path, reason string) (int64, error) {
	res, err := ExecWithRetry(r.DB,
		"INSERT INTO blacklist_entries (profile_id, path, reason) VALUES (?, ?, ?)",
		profileID, path, reason)
	if err != nil {
		return 0, fmt.Errorf("failed to add blacklist entry: %w", err)
	}
	return res.LastInsertId()
}

// ListBlacklistEntries returns the blacklist for a profile.
func (r *Repository) ListBlacklistEntries(profileID string) ([]domain.BlacklistEntry, error) {
	rows, err := QueryWithRetry(r.DB, `
		SELECT id, profile_id, path, COALESCE(reason, ''), created_at
		FROM blacklist_entries WHERE profile_id = ? ORDER BY path`, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to list blacklist entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.BlacklistEntry
	for rows.Next() {
		var e domain.BlacklistEntry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.ProfileID, &e.Path, &e.Reason, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan blacklist entry: %w", err)
		}
		e.CreatedAt = parseDBTime(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RemoveBlacklistEntry deletes a blacklist entry by ID.
func (r *Repository) RemoveBlacklistEntry(id int64) error {
	res, err := ExecWithRetry(r.DB, "DELETE FROM blacklist_entries WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to remove blacklist entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// =============================================================================
// Scan history
// =============================================================================

// CreateScanRecord inserts a running scan row.
func (r *Repository) CreateScanRecord(scanID, trigger string, startedAt time.Time) error {
	_, err := ExecWithRetry(r.DB, `
		INSERT INTO scans (scan_id, trigger_source, status, started_at)
		VALUES (?, ?, 'running', ?)`,
		scanID, trigger, startedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to create scan record: %w", err)
	}
	return nil
}

// CompleteScanRecord finalizes a scan row with its counters.
func (r *Repository) CompleteScanRecord(scanID string, summary domain.ScanSummaryEventData, completedAt time.Time) error {
	_, err := ExecWithRetry(r.DB, `
		UPDATE scans SET status = 'completed', new_count = ?, modified_count = ?,
		       unchanged_count = ?, removed_count = ?, skipped_count = ?, completed_at = ?
		WHERE scan_id = ?`,
		summary.New, summary.Modified, summary.Unchanged, summary.Removed, summary.Skipped,
		completedAt.UTC().Format(time.RFC3339Nano), scanID)
	if err != nil {
		return fmt.Errorf("failed to complete scan record: %w", err)
	}
	return nil
}

// FailScanRecord marks a scan row as failed with the error message.
func (r *Repository) FailScanRecord(scanID, errMsg string, completedAt time.Time) error {
	_, err := ExecWithRetry(r.DB, `
		UPDATE scans SET status = 'failed', error = ?, completed_at = ?
		WHERE scan_id = ?`,
		errMsg, completedAt.UTC().Format(time.RFC3339Nano), scanID)
	if err != nil {
		return fmt.Errorf("failed to mark scan as failed: %w", err)
	}
	return nil
}

// ListScans returns recent scan records, newest first.
func (r *Repository) ListScans(limit int) ([]domain.ScanRecord, error) {
	rows, err := QueryWithRetry(r.DB, `
		SELECT id, scan_id, trigger_source, status, new_count, modified_count,
		       unchanged_count, removed_count, skipped_count, COALESCE(error, ''),
		       started_at, completed_at
		FROM scans ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}
	defer rows.Close()

	var scans []domain.ScanRecord
	for rows.Next() {
		var s domain.ScanRecord
		var startedAt string
		var completedAt sql.NullString
		if err := rows.Scan(&s.ID, &s.ScanID, &s.Trigger, &s.Status, &s.New, &s.Modified,
			&s.Unchanged, &s.Removed, &s.Skipped, &s.Error, &startedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("failed to scan scan record: %w", err)
		}
		s.StartedAt = parseDBTime(startedAt)
		if completedAt.Valid {
			t := parseDBTime(completedAt.String)
			s.CompletedAt = &t
		}
		scans = append(scans, s)
	}
	return scans, rows.Err()
}

// =============================================================================
// Artists
// =============================================================================

// SyncArtistCounts rebuilds the artists table aggregates from the tracks table.
// New artist names get a row, existing rows keep their enrichment data.
func (r *Repository) SyncArtistCounts() error {
	_, err := ExecWithRetry(r.DB, `
		INSERT INTO artists (name, track_count)
		SELECT artist, COUNT(*) FROM tracks WHERE artist != '' GROUP BY artist
		ON CONFLICT(name) DO UPDATE SET track_count = excluded.track_count`)
	if err != nil {
		return fmt.Errorf("failed to sync artist counts: %w", err)
	}

	// Drop aggregates whose tracks are all gone
	_, err = ExecWithRetry(r.DB,
		"DELETE FROM artists WHERE name NOT IN (SELECT DISTINCT artist FROM tracks WHERE artist != '')")
	if err != nil {
		return fmt.Errorf("failed to prune orphaned artists: %w", err)
	}
	return nil
}

// ArtistsPendingEnrichment returns artists without enrichment data, oldest first.
func (r *Repository) ArtistsPendingEnrichment(limit int) ([]domain.Artist, error) {
	rows, err := QueryWithRetry(r.DB, `
		SELECT id, name, mbid, country, disambiguation, track_count, enriched_at, created_at
		FROM artists WHERE enriched_at IS NULL ORDER BY created_at LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending artists: %w", err)
	}
	defer rows.Close()

	var artists []domain.Artist
	for rows.Next() {
		a, err := scanArtist(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan artist: %w", err)
		}
		artists = append(artists, *a)
	}
	return artists, rows.Err()
}

// MarkArtistEnriched stores enrichment results for an artist.
func (r *Repository) MarkArtistEnriched(id int64, mbid, country, disambiguation string, enrichedAt time.Time) error {
	_, err := ExecWithRetry(r.DB, `
		UPDATE artists SET mbid = ?, country = ?, disambiguation = ?, enriched_at = ?
		WHERE id = ?`,
		mbid, country, disambiguation, enrichedAt.UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("failed to mark artist enriched: %w", err)
	}
	return nil
}

// ListArtists returns artists ordered by name.
func (r *Repository) ListArtists(limit, offset int) ([]domain.Artist, error) {
	rows, err := QueryWithRetry(r.DB, `
		SELECT id, name, mbid, country, disambiguation, track_count, enriched_at, created_at
		FROM artists ORDER BY name LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list artists: %w", err)
	}
	defer rows.Close()

	var artists []domain.Artist
	for rows.Next() {
		a, err := scanArtist(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan artist: %w", err)
		}
		artists = append(artists, *a)
	}
	return artists, rows.Err()
}

func scanArtist(rows *sql.Rows) (*domain.Artist, error) {
	var a domain.Artist
	var enrichedAt sql.NullString
	var createdAt string
	err := rows.Scan(&a.ID, &a.Name, &a.MBID, &a.Country, &a.Disambiguation,
		&a.TrackCount, &enrichedAt, &createdAt)
	if err != nil {
		return nil, err
	}
	if enrichedAt.Valid {
		t := parseDBTime(enrichedAt.String)
		a.EnrichedAt = &t
	}
	a.CreatedAt = parseDBTime(createdAt)
	return &a, nil
}

// =============================================================================
// Settings
// =============================================================================

// GetSetting returns a settings value, or empty string when unset.
func (r *Repository) GetSetting(key string) (string, error) {
	var value string
	err := r.DB.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, nil
}

// SetSetting upserts a settings value.
func (r *Repository) SetSetting(key, value string) error {
	_, err := ExecWithRetry(r.DB, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value)
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}
