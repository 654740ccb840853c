package globals

import "github.com/hashicorp/go-hclog"

// SystemUserId is the sender id used for engine-authored messages
// (departure notices etc.). It can never collide with a registered
// account because registration rejects it.
const SystemUserId = "system"

var AppLogger = hclog.New(&hclog.LoggerOptions{
	Name:  "stanza-chat",
	Level: hclog.LevelFromString("INFO"),
})
