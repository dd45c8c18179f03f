package appfs

import "embed"

//go:embed migrations templates templates/email/_* assets
var FS embed.FS
