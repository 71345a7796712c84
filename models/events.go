package models

// GuildMessageEvent is an inbound message event mapped from the platform gateway
type GuildMessageEvent struct {
	GuildID   GuildID
	User      GuildUser
	ChannelID ChannelID
	IsAdmin   bool
	IsBot     bool
}

// GuildMemberJoinEvent is an inbound member-join event mapped from the platform gateway
type GuildMemberJoinEvent struct {
	GuildID GuildID
	User    GuildUser
}
