package sqldoc

const selectDocumentsSQL = `SELECT id, body FROM documents`

// Tagged documents sort before legacy untagged ones, then oldest first.
const orderSQL = ` ORDER BY (locale IS NULL), created_at, id`

const selectByIDSQL = `SELECT id, body FROM documents WHERE collection = ? AND id = ?`

const insertSQL = `
INSERT INTO documents
  (id, collection, slug, locale, status, group_id, email, body, created_at, updated_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const updateSQL = `
UPDATE documents SET
  slug       = ?,
  locale     = ?,
  status     = ?,
  group_id   = ?,
  email      = ?,
  body       = ?,
  updated_at = ?
WHERE collection = ? AND id = ?
`

const deleteSQL = `DELETE FROM documents WHERE collection = ? AND id = ?`
