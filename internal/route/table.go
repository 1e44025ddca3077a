package route

// names maps a masked path (the METHOD-agnostic "/pattern" produced by
// maskPath) to the short label used in logs and metrics. Entries mirror the
// route families recognized by the proxy this design is based on; paths
// with no entry classify as UnknownName rather than failing the request —
// an unrecognized route still gets a (conservative, shared) fallback
// bucket.
var names = map[string]string{
	"/channels/:id":                                 "Channel",
	"/channels/:id/invites":                         "Channel invite",
	"/channels/:id/messages":                        "Channel message",
	"/channels/:id/messages/:id":                    "Channel message",
	"/channels/:id/messages/:id/crosspost":           "Crosspost message",
	"/channels/:id/messages/bulk-delete":             "Bulk delete message",
	"/channels/:id/messages/:id/reactions/:emoji":    "Message reaction",
	"/channels/:id/permissions/:id":                  "Channel permission override",
	"/channels/:id/pins":                             "Channel pins",
	"/channels/:id/pins/:id":                         "Specific channel pin",
	"/channels/:id/typing":                           "Typing indicator",
	"/channels/:id/webhooks":                         "Webhook",
	"/channels/:id/recipients/:id":                   "Channel recipients",
	"/channels/:id/followers":                        "Channel followers",
	"/webhooks/:id":                                  "Webhook",
	"/webhooks/:id/:token":                           "Webhook",
	"/webhooks/:id/:token/messages/:id":              "Specific webhook message",
	"/webhooks/:id/:token/messages/@original":        "Specific webhook message",

	"/gateway":     "Gateway",
	"/gateway/bot": "Gateway bot info",

	"/guilds":                                "Guilds",
	"/guilds/:id":                            "Guild",
	"/guilds/:id/bans":                       "Guild bans",
	"/guilds/:id/audit-logs":                 "Guild audit logs",
	"/guilds/:id/bans/:id":                   "Specific guild ban",
	"/guilds/:id/channels":                   "Guild channel",
	"/guilds/:id/widget":                     "Guild widget",
	"/guilds/:id/widget.json":                "Guild widget",
	"/guilds/:id/emojis":                     "Guild emoji",
	"/guilds/:id/emojis/:id":                 "Specific guild emoji",
	"/guilds/:id/integrations":               "Guild integrations",
	"/guilds/:id/integrations/:id":           "Specific guild integration",
	"/guilds/:id/integrations/:id/sync":      "Sync guild integration",
	"/guilds/:id/invites":                    "Guild invites",
	"/guilds/:id/members":                    "Guild members",
	"/guilds/:id/members/search":             "Search guild members",
	"/guilds/:id/members/:id":                "Specific guild member",
	"/guilds/:id/members/:id/roles/:id":      "Guild member role",
	"/guilds/:id/members/@me/nick":           "Modify own nickname",
	"/guilds/:id/preview":                    "Guild preview",
	"/guilds/:id/prune":                      "Guild prune",
	"/guilds/:id/regions":                    "Guild region",
	"/guilds/:id/roles":                      "Guild roles",
	"/guilds/:id/roles/:id":                  "Specific guild role",
	"/guilds/:id/vanity-url":                 "Guild vanity invite",
	"/guilds/:id/webhooks":                   "Guild webhooks",
	"/guilds/:id/templates":                  "Guild templates",
	"/guilds/:id/templates/:code":            "Specific guild template",
	"/guilds/:id/voice-states/@me":           "Guild voice states",
	"/guilds/:id/voice-states/:id":           "Guild voice states",
	"/guilds/:id/welcome-screen":             "Guild welcome screen",

	"/invites/:code": "Invite info",

	"/users/@me":             "User info",
	"/users/:id":             "User info",
	"/users/@me/connections": "User connections",
	"/users/@me/channels":    "User channels",
	"/users/@me/guilds":      "User in guild",
	"/users/@me/guilds/:id":  "Guild from user",

	"/voice/regions": "Voice region list",

	"/oauth2/applications/@me": "Current application info",

	"/applications/:id/commands":                  "Application commands",
	"/applications/:id/commands/:id":               "Application command",
	"/applications/:id/guilds/:id/commands":        "Application commands in guild",
	"/applications/:id/guilds/:id/commands/:id":    "Application command in guild",

	"/interactions/:id/:token/callback": "Interaction callback",

	"/stage-instances": "Stage instances",
}
