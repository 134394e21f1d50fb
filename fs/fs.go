package appfs

import "embed"

// FS holds the files shipped inside the binary: SQL migrations, email & message templates and assets.
//
//go:embed migrations/*.sql templates/email/* templates/message/* assets/*
var FS embed.FS
