// Package sql embeds the schema migrations and the statements used by the
// upload store.
package sql

import (
	"embed"
)

//go:embed migrations/*.sql
var Migrations embed.FS

//go:embed queries/insert_upload.sql
var InsertUpload string

//go:embed queries/finalize_upload.sql
var FinalizeUpload string

//go:embed queries/mark_parse_errors.sql
var MarkParseErrors string

//go:embed queries/get_upload.sql
var GetUpload string

//go:embed queries/list_uploads.sql
var ListUploads string

//go:embed queries/load_pending.sql
var LoadPending string

//go:embed queries/list_pending.sql
var ListPending string

//go:embed queries/find_duplicates.sql
var FindDuplicates string

//go:embed queries/delete_upload.sql
var DeleteUpload string

//go:embed queries/list_line_items.sql
var ListLineItems string

//go:embed queries/list_period_line_items.sql
var ListPeriodLineItems string
