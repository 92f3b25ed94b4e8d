package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/reliefhub/reliefhub-backend/pkg/actor"
	"github.com/reliefhub/reliefhub-backend/pkg/config"
	"github.com/reliefhub/reliefhub-backend/pkg/httputil"
	"github.com/reliefhub/reliefhub-backend/pkg/permissions"
	"github.com/spf13/cobra"
)

// newTokenCmd issues access tokens for operators. Identity lives with the
// upstream identity provider; this exists for bootstrap and field kits
// that run without one.
func newTokenCmd() *cobra.Command {
	var (
		id, name, role string
		grants         []string
		ttl            time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed access token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, ok := permissions.RolePermissions[role]; !ok {
				return fmt.Errorf("unknown role %q", role)
			}
			for _, g := range grants {
				if !permissions.IsValidPermission(g) {
					return fmt.Errorf("unknown permission %q", g)
				}
			}

			cfg, err := config.LoadWithValidation(serviceName)
			if err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}

			if id == "" {
				id = uuid.New().String()
			}
			token, err := httputil.NewTokens(&cfg.JWT).Issue(&actor.Actor{
				ID:          id,
				Name:        name,
				Role:        role,
				Permissions: grants,
			}, ttl)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "operator id (random when empty)")
	cmd.Flags().StringVar(&name, "name", "", "operator display name")
	cmd.Flags().StringVar(&role, "role", actor.RoleViewer, "admin, warehouse, dispatcher or viewer")
	cmd.Flags().StringSliceVar(&grants, "grant", nil, "extra permission on top of the role")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}
