package commands

import "github.com/bwmarrin/discordgo"

func GetCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:         "draft",
			Description:  "Show your current draft, totals and missing fields",
			DMPermission: boolPtr(true),
		},
		{
			Name:         "entry",
			Description:  "Send one line to your draft, e.g. diesel 500",
			DMPermission: boolPtr(true),
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "text",
					Description: "Field and value, or yes/no",
					Required:    true,
				},
			},
		},
		{
			Name:         "submit",
			Description:  "Submit your draft when every required field is filled",
			DMPermission: boolPtr(true),
		},
		{
			Name:         "clear",
			Description:  "Discard your current draft",
			DMPermission: boolPtr(true),
		},
	}
}

func boolPtr(b bool) *bool {
	return &b
}
