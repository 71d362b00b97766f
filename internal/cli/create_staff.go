package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rongwang/checkin-server/internal/models"
)

type createStaffOptions struct {
	Email    string
	Name     string
	Password string
	Role     string
}

// NewCreateStaffCommand creates the create-staff command.
func NewCreateStaffCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &createStaffOptions{}

	cmd := &cobra.Command{
		Use:          "create-staff",
		Short:        "Create a staff or admin login",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(rootOpts)
			logger := newLogger(rootOpts)

			a, err := openApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.db.Close()

			user, err := a.service.CreateStaffUser(cmd.Context(), opts.Email, opts.Name, opts.Password, opts.Role)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "created %s %s (%s)\n", user.Role, user.Email, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Email, "email", "", "login email (required)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "display name (required)")
	cmd.Flags().StringVar(&opts.Password, "password", "", "password, at least 8 characters (required)")
	cmd.Flags().StringVar(&opts.Role, "role", models.RoleStaff, "role (staff|admin)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}
