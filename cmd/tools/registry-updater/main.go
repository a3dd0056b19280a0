// cmd/tools/registry-updater/main.go
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"supervisor-core/pkg/registry"
)

var registryPath string

func main() {
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)

	// Add command flags
	idAdd := addCmd.String("id", "", "Specialist ID (e.g., financial_analyst)")
	displayName := addCmd.String("displayName", "", "Display Name (e.g., Financial Analyst)")
	description := addCmd.String("description", "", "Description")
	agentName := addCmd.String("agentName", "", "Agent endpoint name (e.g., financial-analyst)")
	keywords := addCmd.String("keywords", "", "Comma-separated keyword list")
	affinities := addCmd.String("affinities", "", "Comma-separated intent domains")
	fallback := addCmd.Bool("fallback", false, "Mark as the fallback specialist")
	addCmd.StringVar(&registryPath, "path", "configs/specialist-registry.json", "Path to registry file")

	// Update command flags
	idUpdate := updateCmd.String("id", "", "Specialist ID to update")
	field := updateCmd.String("field", "", "Field to update (displayName, description, agentName, keywords, affinities)")
	value := updateCmd.String("value", "", "New value for the field")
	updateCmd.StringVar(&registryPath, "path", "configs/specialist-registry.json", "Path to registry file")

	// Validate command flags
	validateCmd.StringVar(&registryPath, "path", "configs/specialist-registry.json", "Path to registry file")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "add":
		addCmd.Parse(os.Args[2:])
		if *idAdd == "" || *displayName == "" || *agentName == "" {
			fmt.Println("Error: id, displayName, and agentName are required for add.")
			addCmd.Usage()
			os.Exit(1)
		}
		if !*fallback && *keywords == "" {
			fmt.Println("Error: a non-fallback specialist needs a keyword list.")
			addCmd.Usage()
			os.Exit(1)
		}
		specialist := registry.Specialist{
			ID:               *idAdd,
			DisplayName:      *displayName,
			Description:      *description,
			AgentName:        *agentName,
			Keywords:         splitList(*keywords),
			IntentAffinities: splitList(*affinities),
			Fallback:         *fallback,
		}
		if err := addSpecialist(&specialist); err != nil {
			fmt.Printf("Error adding specialist: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added specialist: %s\n", *idAdd)

	case "update":
		updateCmd.Parse(os.Args[2:])
		if *idUpdate == "" || *field == "" || *value == "" {
			fmt.Println("Error: id, field, and value are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		if err := updateSpecialist(*idUpdate, *field, *value); err != nil {
			fmt.Printf("Error updating specialist: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated specialist %s, field %s to %s\n", *idUpdate, *field, *value)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		reg, err := registry.Load(registryPath)
		if err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Registry validation passed. Found %d specialists.\n", len(reg.Specialists))

	case "help":
		fallthrough
	default:
		help()
	}
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, strings.ToLower(trimmed))
		}
	}
	return out
}

func addSpecialist(specialist *registry.Specialist) error {
	reg, err := registry.Load(registryPath)
	if err != nil {
		// If file doesn't exist, start a fresh catalog
		if errors.Is(err, os.ErrNotExist) {
			reg = &registry.SpecialistRegistry{
				Version:     "1.0.0",
				LastUpdated: time.Now().Format(time.RFC3339),
				Specialists: []registry.Specialist{},
			}
		} else {
			return fmt.Errorf("failed to load registry: %w", err)
		}
	}

	for _, existing := range reg.Specialists {
		if existing.ID == specialist.ID {
			return fmt.Errorf("specialist with ID %s already exists", specialist.ID)
		}
	}

	reg.Specialists = append(reg.Specialists, *specialist)
	reg.LastUpdated = time.Now().Format(time.RFC3339)

	return saveRegistry(reg, registryPath)
}

func updateSpecialist(id, field, value string) error {
	reg, err := registry.Load(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	found := false
	for i := range reg.Specialists {
		if reg.Specialists[i].ID == id {
			found = true
			switch field {
			case "displayName":
				reg.Specialists[i].DisplayName = value
			case "description":
				reg.Specialists[i].Description = value
			case "agentName":
				reg.Specialists[i].AgentName = value
			case "keywords":
				reg.Specialists[i].Keywords = splitList(value)
			case "affinities":
				reg.Specialists[i].IntentAffinities = splitList(value)
			default:
				return fmt.Errorf("unknown field: %s", field)
			}
			break
		}
	}

	if !found {
		return fmt.Errorf("specialist with ID %s not found", id)
	}

	reg.LastUpdated = time.Now().Format(time.RFC3339)
	return saveRegistry(reg, registryPath)
}

// saveRegistry re-validates the catalog through Parse before writing, so
// the tool can never persist a registry the service would refuse to load.
func saveRegistry(reg *registry.SpecialistRegistry, path string) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}

	if _, err := registry.Parse(data); err != nil {
		return fmt.Errorf("refusing to save invalid registry: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}

	return nil
}

func help() {
	fmt.Print(`
Usage: registry-updater <command> [flags]

Commands:
  add      Add a new specialist to the registry
  update   Update an existing specialist's field
  validate Validate the registry file
  help     Show this help message

Examples:
  registry-updater add -id legal_counsel -displayName "Legal Counsel" -agentName legal-counsel -keywords "contract,indemnity,warranty" -affinities legal
  registry-updater update -id legal_counsel -field keywords -value "contract,indemnity,warranty,clause"
  registry-updater validate -path configs/specialist-registry.json

Use 'registry-updater <command> -h' for more information about a command.
`)
}
