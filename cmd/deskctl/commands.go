package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"accountdesk/backend/internal/auth"
	"accountdesk/backend/internal/domain"
	"accountdesk/backend/internal/service"
	"accountdesk/backend/internal/storage"
	"accountdesk/backend/internal/storage/filesystem"
	sqlstore "accountdesk/backend/internal/storage/sql"
)

// storageOptions 命令行与环境变量共同决定的存储配置
type storageOptions struct {
	v *viper.Viper
}

func newRootCmd() *cobra.Command {
	opts := &storageOptions{v: viper.New()}
	opts.v.SetEnvPrefix("accountdesk")
	opts.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	opts.v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "deskctl",
		Short: "Operator tooling for the account dashboard",
		Long: `deskctl manages the record collections behind the account dashboard.

Storage settings fall back to the same ACCOUNTDESK_* environment variables
the server reads.

Examples:
  deskctl hash-password                 # Read a password from stdin, print a bcrypt hash
  deskctl collections list              # Show the collection directory
  deskctl collections create Netflix    # Create an empty collection
  deskctl records list Netflix          # Print the records of a collection`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.String("storage.driver", "filesystem", "storage driver: filesystem, postgres or mysql")
	flags.String("storage.data_dir", "./data", "data directory for the filesystem driver")
	flags.String("storage.dsn", "", "database DSN for the postgres and mysql drivers")
	flags.String("collections.service_accounts", "ServiceAccounts", "service accounts collection name")
	flags.String("collections.temp_emails", "CloudflareTempEmail", "temp email collection name")
	_ = opts.v.BindPFlags(flags)

	root.AddCommand(newHashPasswordCmd())
	root.AddCommand(newCollectionsCmd(opts))
	root.AddCommand(newRecordsCmd(opts))
	return root
}

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Print a bcrypt hash for ACCOUNTDESK_AUTH_PASSWORD_HASH",
		Long: `Read the operator password from the first line of stdin and print its
bcrypt hash.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			password := strings.TrimRight(line, "\r\n")
			if password == "" {
				return errors.New("password is empty")
			}

			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func newCollectionsCmd(opts *storageOptions) *cobra.Command {
	collectionsCmd := &cobra.Command{
		Use:   "collections",
		Short: "Inspect and create record collections",
	}

	collectionsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Show the collection directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withStore(cmd.Context(), func(store *storage.Store) error {
				for _, name := range opts.directory(store).List(cmd.Context()) {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			})
		},
	})

	collectionsCmd.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Create an empty collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd.Context(), func(store *storage.Store) error {
				name := strings.TrimSpace(args[0])
				if err := opts.directory(store).Create(cmd.Context(), name); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", name)
				return nil
			})
		},
	})

	return collectionsCmd
}

func newRecordsCmd(opts *storageOptions) *cobra.Command {
	recordsCmd := &cobra.Command{
		Use:   "records",
		Short: "Inspect the records of a collection",
	}

	recordsCmd.AddCommand(&cobra.Command{
		Use:   "list <collection>",
		Short: "Print the records of a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd.Context(), func(store *storage.Store) error {
				if args[0] == opts.v.GetString("collections.temp_emails") {
					return printTempEmails(cmd, store, args[0])
				}
				return printServiceAccounts(cmd, store, args[0])
			})
		},
	})

	return recordsCmd
}

func printServiceAccounts(cmd *cobra.Command, store *storage.Store, collection string) error {
	records, err := service.NewRecords[domain.ServiceAccountRecord](store, nil, nil).List(cmd.Context(), collection)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tEMAIL\tSERVICE\tREGISTERED\tACTIVE UNTIL\tAVAILABLE\tWARRANTY")
	for i, r := range records {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%t\t%s\n",
			i, r.Email, r.Tag(), domain.FormatDate(r.RegistrationDate),
			domain.FormatDate(r.ActiveUntil), r.Availability, r.Warranty)
	}
	return w.Flush()
}

func printTempEmails(cmd *cobra.Command, store *storage.Store, collection string) error {
	records, err := service.NewRecords[domain.TempEmailRecord](store, nil, nil).List(cmd.Context(), collection)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tEMAIL\tSERVICE\tREGISTERED\tAVAILABLE\tWARRANTY")
	for i, r := range records {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%t\t%s\n",
			i, r.Email, r.Tag(), domain.FormatDate(r.RegistrationDate), r.Availability, r.Warranty)
	}
	return w.Flush()
}

func (o *storageOptions) directory(store *storage.Store) *service.Directory {
	return service.NewDirectory(store, service.DirectoryConfig{
		ServiceAccounts: o.v.GetString("collections.service_accounts"),
		TempEmails:      o.v.GetString("collections.temp_emails"),
	}, nil, zap.NewNop())
}

// withStore 打开存储后端执行 fn 并在结束后关闭
func (o *storageOptions) withStore(ctx context.Context, fn func(*storage.Store) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var backend storage.Backend
	switch driver := o.v.GetString("storage.driver"); driver {
	case "postgres", "mysql":
		store, err := sqlstore.NewStore(driver, o.v.GetString("storage.dsn"), 2, 1, 0)
		if err != nil {
			return err
		}
		backend = store
	case "filesystem", "":
		store, err := filesystem.NewStore(o.v.GetString("storage.data_dir"))
		if err != nil {
			return err
		}
		backend = store
	default:
		return fmt.Errorf("unsupported storage driver %q", driver)
	}

	store := storage.NewStore(backend)
	defer store.Close()
	return fn(store)
}
