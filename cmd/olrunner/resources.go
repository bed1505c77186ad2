package main

import (
	"context"
	"fmt"

	"github.com/cuemby/olrunner/pkg/types"
	"github.com/spf13/cobra"
)

var resourcesCmd = &cobra.Command{
	Use:   "resources",
	Short: "List management resources exposed by the server",
	Long: `List the management resources exposed by the server, optionally
filtered by an object name pattern and a class name. With --attributes the
attributes of every listed resource are printed as well.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		comps, err := newComponents(cfg)
		if err != nil {
			return fmt.Errorf("failed to configure server control: %v", err)
		}
		client, err := comps.client()
		if err != nil {
			return fmt.Errorf("failed to connect to server: %v", err)
		}

		objectQuery, _ := cmd.Flags().GetString("object")
		classQuery, _ := cmd.Flags().GetString("class")
		withAttrs, _ := cmd.Flags().GetBool("attributes")

		ctx := context.Background()
		var refs []types.ManagedResourceRef
		if objectQuery == "" && classQuery == "" {
			refs, err = client.ListResources(ctx)
		} else {
			refs, err = client.Discover(ctx, objectQuery, classQuery)
		}
		if err != nil {
			return fmt.Errorf("failed to list resources: %v", err)
		}

		for _, ref := range refs {
			fmt.Printf("%s  (%s)\n", ref.ResourceID, ref.ResourceType)
			if !withAttrs {
				continue
			}
			attrs, err := client.FetchAttributes(ctx, ref)
			if err != nil {
				fmt.Printf("    attributes unavailable: %v\n", err)
				continue
			}
			for _, a := range attrs {
				fmt.Printf("    %-28s %-20s %s\n", a.Name, a.DeclaredType, a.Value)
			}
		}
		fmt.Printf("%d resource(s)\n", len(refs))
		return nil
	},
}

func init() {
	resourcesCmd.Flags().String("object", "", "Object name pattern, e.g. WebSphere:type=*,*")
	resourcesCmd.Flags().String("class", "", "Implementation class name")
	resourcesCmd.Flags().Bool("attributes", false, "Also print the attributes of every resource")

	rootCmd.AddCommand(resourcesCmd)
}
