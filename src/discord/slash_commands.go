package discord

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/bwmarrin/discordgo"
)

const (
	CommandProposeAdd           = "propose_add"
	CommandProposeAddCompany    = "propose_add_company"
	CommandProposeRemove        = "propose_remove"
	CommandProposeRemoveCompany = "propose_remove_company"
	CommandAppeal               = "appeal"
	CommandAppealCompany        = "appeal_company"
	CommandAddEvidence          = "add_evidence"
	CommandSearchList           = "search_list"
	CommandSearchNation         = "search_nation"
	CommandSearchCompany        = "search_company"
	CommandEditEntry            = "edit_entry"
	CommandEditCompanyEntry     = "edit_company_entry"
	CommandExport               = "export"
)

func stringOpt(name, description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        name,
		Description: description,
		Required:    required,
	}
}

func attachmentOpt(name, description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionAttachment,
		Name:        name,
		Description: description,
		Required:    required,
	}
}

func choiceOpt(name, description string, required bool, choices ...[2]string) *discordgo.ApplicationCommandOption {
	opt := stringOpt(name, description, required)
	for _, c := range choices {
		opt.Choices = append(opt.Choices, &discordgo.ApplicationCommandOptionChoice{Name: c[0], Value: c[1]})
	}
	return opt
}

var (
	editModeOpt = choiceOpt("edit_mode", "Whether to replace the current values or add to them", true,
		[2]string{"Replace - Completely replace the current values", "replace"},
		[2]string{"Append - Add to the current values", "append"},
	)
	editScopeOpt = choiceOpt("list_type", "Which list to edit (blacklist, greylist, or both)", false,
		[2]string{"Both lists", "both"},
		[2]string{"Blacklist only", "blacklist"},
		[2]string{"Greylist only", "greylist"},
	)
)

var commandDefinitions = map[string]*discordgo.ApplicationCommand{
	CommandProposeAdd: {
		Name:        CommandProposeAdd,
		Description: "Propose adding a person to the blacklist (creates voting ticket)",
		Options: []*discordgo.ApplicationCommandOption{
			stringOpt("name", "Display name of the person", true),
			stringOpt("reason", "Why they should be blacklisted", true),
			attachmentOpt("proof", "Screenshot or file backing the proposal", true),
			stringOpt("id", "Discord user id", false),
			stringOpt("nation_id", "Politics & War nation id", false),
			attachmentOpt("proof2", "Additional proof", false),
			attachmentOpt("proof3", "Additional proof", false),
			stringOpt("pos_alts", "Possible alt accounts (mentions or ids)", false),
		},
	},
	CommandProposeAddCompany: {
		Name:        CommandProposeAddCompany,
		Description: "Propose adding a company to the blacklist (creates voting ticket)",
		Options: []*discordgo.ApplicationCommandOption{
			stringOpt("company_name", "Company name", true),
			stringOpt("owner", "Owner (mention or id)", true),
			stringOpt("reason", "Why the company should be blacklisted", true),
			attachmentOpt("proof", "Screenshot or file backing the proposal", true),
			stringOpt("personnel", "Personnel (mentions or ids)", false),
			stringOpt("alts", "Known alt accounts", false),
			attachmentOpt("proof2", "Additional proof", false),
			attachmentOpt("proof3", "Additional proof", false),
		},
	},
	CommandProposeRemove: {
		Name:        CommandProposeRemove,
		Description: "Propose removing a person from the blacklist (creates voting ticket)",
		Options: []*discordgo.ApplicationCommandOption{
			stringOpt("reason", "Why they should be removed", true),
			stringOpt("id", "Discord user id", false),
			stringOpt("nation_id", "Politics & War nation id", false),
		},
	},
	CommandProposeRemoveCompany: {
		Name:        CommandProposeRemoveCompany,
		Description: "Propose removing a company from the blacklist (creates voting ticket)",
		Options: []*discordgo.ApplicationCommandOption{
			stringOpt("company_name", "Company name", true),
			stringOpt("reason", "Why the company should be removed", true),
		},
	},
	CommandAppeal: {
		Name:        CommandAppeal,
		Description: "Appeal your own blacklist entry",
		Options: []*discordgo.ApplicationCommandOption{
			stringOpt("reason", "Why your entry should be removed", true),
		},
	},
	CommandAppealCompany: {
		Name:        CommandAppealCompany,
		Description: "Appeal a company blacklist entry (if you're the owner)",
		Options: []*discordgo.ApplicationCommandOption{
			stringOpt("company_name", "Company name", true),
			stringOpt("reason", "Why the company should be removed", true),
		},
	},
	CommandAddEvidence: {
		Name:        CommandAddEvidence,
		Description: "Submit additional evidence with voting for acceptance",
		Options: []*discordgo.ApplicationCommandOption{
			attachmentOpt("evidence", "Evidence file", true),
			stringOpt("description", "What the evidence shows", false),
		},
	},
	CommandSearchList: {
		Name:        CommandSearchList,
		Description: "Search the blacklist and greylist",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionUser,
				Name:        "name",
				Description: "The member to check",
				Required:    true,
			},
		},
	},
	CommandSearchNation: {
		Name:        CommandSearchNation,
		Description: "Search the blacklist and greylist by nation ID or URL",
		Options: []*discordgo.ApplicationCommandOption{
			stringOpt("nation", "Nation ID (e.g., 680627) or URL (e.g., politicsandwar.com/nation/id=680627)", true),
		},
	},
	CommandSearchCompany: {
		Name:        CommandSearchCompany,
		Description: "Search the company blacklist and greylist by name",
		Options: []*discordgo.ApplicationCommandOption{
			stringOpt("company_name", "Company name or part of it", true),
		},
	},
	CommandEditEntry: {
		Name:        CommandEditEntry,
		Description: "Edit existing blacklist or greylist entries",
		Options: []*discordgo.ApplicationCommandOption{
			stringOpt("names", "The members whose entries to edit (mentions or ids)", true),
			editModeOpt,
			editScopeOpt,
			stringOpt("nation_id", "New nation id", false),
			attachmentOpt("proof", "Proof", false),
			stringOpt("reason", "Reason", false),
			attachmentOpt("proof2", "Additional proof", false),
			attachmentOpt("proof3", "Additional proof", false),
			stringOpt("pos_alts", "Possible alt accounts", false),
		},
	},
	CommandEditCompanyEntry: {
		Name:        CommandEditCompanyEntry,
		Description: "Edit existing company blacklist or greylist entries",
		Options: []*discordgo.ApplicationCommandOption{
			stringOpt("company_names", "Company names to edit (separate multiple with commas)", true),
			editModeOpt,
			editScopeOpt,
			stringOpt("owner", "Owner", false),
			stringOpt("personnel", "Personnel", false),
			stringOpt("alts", "Alts", false),
			stringOpt("reason", "Reason", false),
			attachmentOpt("proof", "Proof", false),
			attachmentOpt("proof2", "Additional proof", false),
			attachmentOpt("proof3", "Additional proof", false),
		},
	},
	CommandExport: {
		Name:        CommandExport,
		Description: "Export blacklist or greylist data",
		Options: []*discordgo.ApplicationCommandOption{
			choiceOpt("list_type", "Which list to export", false,
				[2]string{"Blacklist (People)", "blacklist"},
				[2]string{"Greylist (People)", "greylist"},
				[2]string{"Company Blacklist", "blacklist_coo"},
				[2]string{"Company Greylist", "greylist_coo"},
			),
		},
	},
}

var defaultCommandOrder = []string{
	CommandProposeAdd,
	CommandProposeAddCompany,
	CommandProposeRemove,
	CommandProposeRemoveCompany,
	CommandAppeal,
	CommandAppealCompany,
	CommandAddEvidence,
	CommandSearchList,
	CommandSearchNation,
	CommandSearchCompany,
	CommandEditEntry,
	CommandEditCompanyEntry,
	CommandExport,
}

// CommandNames lists every command in registration order.
func CommandNames() []string {
	return append([]string(nil), defaultCommandOrder...)
}

// Command returns the definition for name.
func Command(name string) (*discordgo.ApplicationCommand, bool) {
	def, ok := commandDefinitions[name]
	return def, ok
}

// RegisterSlashCommands registers the requested slash commands for a guild.
// When no command names are provided, all known commands are registered.
func RegisterSlashCommands(s *discordgo.Session, guildID string, names ...string) error {
	if guildID == "" {
		return fmt.Errorf("discord: guildID is required to register slash commands")
	}

	if len(names) == 0 {
		names = defaultCommandOrder
	}

	var failures []string
	for _, name := range names {
		definition, ok := commandDefinitions[name]
		if !ok {
			log.Printf("discord: unknown slash command %q", name)
			continue
		}

		_, err := s.ApplicationCommandCreate(s.State.User.ID, guildID, definition)
		if err != nil {
			if isDuplicateCommandError(err) {
				log.Printf("discord: slash command %q already registered", name)
				continue
			}
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
			log.Printf("discord: failed to register command %q: %v", name, err)
		}
	}

	if len(failures) > 0 {
		return fmt.Errorf("discord: slash command registration errors: %s", strings.Join(failures, "; "))
	}

	return nil
}

// DeleteSlashCommands removes all registered slash commands for a guild.
func DeleteSlashCommands(s *discordgo.Session, guildID string) error {
	if guildID == "" {
		return fmt.Errorf("discord: guildID is required to delete slash commands")
	}

	commands, err := s.ApplicationCommands(s.State.User.ID, guildID)
	if err != nil {
		return err
	}

	for _, cmd := range commands {
		if err := s.ApplicationCommandDelete(s.State.User.ID, guildID, cmd.ID); err != nil {
			return err
		}
	}

	return nil
}

func isDuplicateCommandError(err error) bool {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) {
		if restErr.Message != nil {
			msg := strings.ToLower(restErr.Message.Message)
			if strings.Contains(msg, "already exists") {
				return true
			}
		}
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "50035") && strings.Contains(msg, "already exists")
}
