// cmd/tools/registry-updater/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"upsell-workers/internal/common/validation"
	"upsell-workers/pkg/registry"
)

const defaultRegistryPath = "configs/activity-registry.json"

func main() {
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)

	// Add command flags
	addPath := addCmd.String("path", defaultRegistryPath, "Path to registry file")
	idAdd := addCmd.String("id", "", "Activity ID (e.g., upsell.cart.resolve)")
	displayName := addCmd.String("displayName", "", "Display Name (e.g., Resolve Cart Upsells)")
	description := addCmd.String("description", "", "Description")
	category := addCmd.String("category", "upsell", "Category")
	taskType := addCmd.String("taskType", "", "Camunda Task Type (e.g., resolve-cart-upsells)")
	version := addCmd.String("version", "1.0.0", "Version")
	implStatus := addCmd.String("status", "planned", "Implementation Status (planned, in-progress, completed, verified)")

	// Update command flags
	updatePath := updateCmd.String("path", defaultRegistryPath, "Path to registry file")
	idUpdate := updateCmd.String("id", "", "Activity ID to update")
	field := updateCmd.String("field", "", "Field to update (status, version, etc.)")
	value := updateCmd.String("value", "", "New value for the field")

	// Validate command flags
	validatePath := validateCmd.String("path", defaultRegistryPath, "Path to registry file")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "add":
		addCmd.Parse(os.Args[2:])
		if *idAdd == "" || *displayName == "" || *description == "" || *taskType == "" {
			fmt.Println("Error: id, displayName, description, and taskType are required for add.")
			addCmd.Usage()
			os.Exit(1)
		}
		activity := registry.Activity{
			ID:                   *idAdd,
			DisplayName:          *displayName,
			Description:          *description,
			Category:             *category,
			Version:              *version,
			TaskType:             *taskType,
			ImplementationStatus: *implStatus,
			InputSchema:          map[string]interface{}{"type": "object", "additionalProperties": true},
			OutputSchema:         map[string]interface{}{"type": "object"},
			ErrorCodes:           []string{},
			Timeout:              "10s",
			Retries:              3,
			Workflows:            []string{},
			Tags:                 []string{"upsell"},
		}
		if err := addActivity(*addPath, &activity); err != nil {
			fmt.Printf("Error adding activity: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added activity: %s\n", *idAdd)

	case "update":
		updateCmd.Parse(os.Args[2:])
		if *idUpdate == "" || *field == "" || *value == "" {
			fmt.Println("Error: id, field, and value are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		if err := updateActivity(*updatePath, *idUpdate, *field, *value); err != nil {
			fmt.Printf("Error updating activity: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated activity %s, field %s to %s\n", *idUpdate, *field, *value)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		count, err := validateRegistry(*validatePath)
		if err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Registry validation passed. Found %d activities.\n", count)

	case "help":
		fallthrough
	default:
		help()
	}
}

func addActivity(path string, activity *registry.Activity) error {
	if err := validation.ValidateActivityNaming(activity.ID); err != nil {
		return err
	}

	reg, err := registry.LoadRegistry(path)
	if err != nil {
		// If file doesn't exist, create new registry
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to load registry: %w", err)
		}
		reg = &registry.ActivityRegistry{
			Version:    "1.0.0",
			Activities: []registry.Activity{},
		}
	}

	if _, exists := reg.ByID(activity.ID); exists {
		return fmt.Errorf("activity with ID %s already exists", activity.ID)
	}
	if _, exists := reg.ByTaskType(activity.TaskType); exists {
		return fmt.Errorf("task type %s is already registered", activity.TaskType)
	}

	reg.Activities = append(reg.Activities, *activity)
	return saveRegistry(reg, path)
}

func updateActivity(path, id, field, value string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	activity, found := reg.ByID(id)
	if !found {
		return fmt.Errorf("activity with ID %s not found", id)
	}

	switch field {
	case "status":
		activity.ImplementationStatus = value
	case "version":
		activity.Version = value
	case "displayName":
		activity.DisplayName = value
	case "description":
		activity.Description = value
	case "category":
		activity.Category = value
	case "taskType":
		activity.TaskType = value
	case "timeout":
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid timeout value: %w", err)
		}
		activity.Timeout = value
	case "retries":
		retries, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid retries value: %w", err)
		}
		activity.Retries = retries
	default:
		return fmt.Errorf("unknown field: %s", field)
	}

	return saveRegistry(reg, path)
}

// validateRegistry checks identity fields and compiles every input schema the
// workers and the HTTP API validate against.
func validateRegistry(path string) (int, error) {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return 0, fmt.Errorf("failed to load registry: %w", err)
	}

	if len(reg.Activities) == 0 {
		return 0, fmt.Errorf("registry contains no activities")
	}

	ids := make(map[string]bool)
	taskTypes := make(map[string]bool)
	for _, activity := range reg.Activities {
		if activity.ID == "" {
			return 0, fmt.Errorf("activity missing required field: ID")
		}
		if ids[activity.ID] {
			return 0, fmt.Errorf("duplicate activity ID: %s", activity.ID)
		}
		ids[activity.ID] = true

		if err := validation.ValidateActivityNaming(activity.ID); err != nil {
			return 0, fmt.Errorf("activity %s: %w", activity.ID, err)
		}
		if activity.DisplayName == "" {
			return 0, fmt.Errorf("activity %s missing required field: DisplayName", activity.ID)
		}
		if activity.TaskType == "" {
			return 0, fmt.Errorf("activity %s missing required field: TaskType", activity.ID)
		}
		if taskTypes[activity.TaskType] {
			return 0, fmt.Errorf("duplicate task type: %s", activity.TaskType)
		}
		taskTypes[activity.TaskType] = true

		if activity.Timeout != "" {
			if _, err := time.ParseDuration(activity.Timeout); err != nil {
				return 0, fmt.Errorf("activity %s has invalid timeout %q", activity.ID, activity.Timeout)
			}
		}
		if len(activity.InputSchema) > 0 {
			if _, err := validation.CompileSchema(activity.InputSchema); err != nil {
				return 0, fmt.Errorf("activity %s input schema: %w", activity.ID, err)
			}
		}
	}

	return len(reg.Activities), nil
}

// saveRegistry stamps lastUpdated and writes the registry, creating the
// directory when needed.
func saveRegistry(reg *registry.ActivityRegistry, path string) error {
	reg.LastUpdated = time.Now().UTC().Format(time.RFC3339)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return registry.Save(reg, path)
}

func help() {
	fmt.Print(`
Usage: registry-updater <command> [flags]

Commands:
  add      Add a new activity to the registry
  update   Update an existing activity's field
  validate Validate the registry file and compile its input schemas
  help     Show this help message

Examples:
  registry-updater add -id upsell.cart.preview -displayName "Preview Cart Upsells" -description "Ranks upsells without recording" -taskType preview-cart-upsells
  registry-updater update -id upsell.cart.resolve -field status -value verified
  registry-updater validate -path configs/activity-registry.json

Use 'registry-updater <command> -h' for more information about a command.

`)
}
