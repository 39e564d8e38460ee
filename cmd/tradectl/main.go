package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"tradepost/internal/domain"
	"tradepost/internal/reports"
	"tradepost/internal/repos"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tradectl",
		Short: "Operations CLI for the tradepost marketplace",
	}

	rootCmd.PersistentFlags().String("db", "tradepost.db", "SQLite DSN")

	rootCmd.AddCommand(createAdminCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(exportCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func createAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create (or keep) an admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			dsn, _ := cmd.Flags().GetString("db")
			email, _ := cmd.Flags().GetString("email")
			name, _ := cmd.Flags().GetString("name")
			password, _ := cmd.Flags().GetString("password")
			if email == "" || password == "" {
				return fmt.Errorf("--email and --password are required")
			}

			db, err := repos.OpenDB(dsn)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := repos.EnsureAdmin(db, email, name, password); err != nil {
				return err
			}
			fmt.Printf("admin %s ready\n", email)
			return nil
		},
	}

	cmd.Flags().String("email", "", "Admin email")
	cmd.Flags().String("name", "Admin", "Display name")
	cmd.Flags().String("password", "", "Password")

	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the order book to an xlsx file",
		RunE: func(cmd *cobra.Command, args []string) error {
			dsn, _ := cmd.Flags().GetString("db")
			out, _ := cmd.Flags().GetString("out")
			status, _ := cmd.Flags().GetString("status")
			limit, _ := cmd.Flags().GetInt("limit")

			db, err := repos.OpenDB(dsn)
			if err != nil {
				return err
			}
			defer db.Close()

			orders, err := repos.NewOrderRepo(db).ListAll(status, limit, 0)
			if err != nil {
				return err
			}
			file, err := reports.OrdersSheet(orders)
			if err != nil {
				return err
			}
			if err := file.Save(out); err != nil {
				return err
			}
			fmt.Printf("wrote %d orders to %s\n", len(orders), out)
			return nil
		},
	}

	cmd.Flags().String("out", "orders.xlsx", "Output file")
	cmd.Flags().String("status", "", "Only orders in this status")
	cmd.Flags().Int("limit", 1000, "Maximum rows")

	return cmd
}

// seedFile is the YAML layout `tradectl seed` consumes. Users are referenced
// by email and categories by slug so the file stays re-runnable.
type seedFile struct {
	Users []struct {
		Email    string `yaml:"email"`
		Name     string `yaml:"name"`
		Password string `yaml:"password"`
		Role     string `yaml:"role"`
		Approved bool   `yaml:"approved"`
	} `yaml:"users"`
	Categories []struct {
		Slug   string `yaml:"slug"`
		Name   string `yaml:"name"`
		Parent string `yaml:"parent"`
	} `yaml:"categories"`
	Products []struct {
		Title       string `yaml:"title"`
		Description string `yaml:"description"`
		Category    string `yaml:"category"`
		Seller      string `yaml:"seller"`
		PriceCents  int64  `yaml:"price_cents"`
		Currency    string `yaml:"currency"`
		Stock       int    `yaml:"stock"`
	} `yaml:"products"`
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed [file]",
		Short: "Load users, categories and products from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dsn, _ := cmd.Flags().GetString("db")

			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var sf seedFile
			if err := yaml.Unmarshal(raw, &sf); err != nil {
				return fmt.Errorf("failed to parse seed file: %w", err)
			}

			db, err := repos.OpenDB(dsn)
			if err != nil {
				return err
			}
			defer db.Close()

			users := repos.NewUserRepo(db)
			cats := repos.NewCategoryRepo(db)
			prods := repos.NewProductRepo(db)

			created := 0
			for _, su := range sf.Users {
				if _, err := users.ByEmail(su.Email); err == nil {
					continue
				}
				role := su.Role
				if role == "" {
					role = domain.RoleBuyer
				}
				if !domain.ValidRole(role) && role != domain.RoleAdmin {
					return fmt.Errorf("user %s: unknown role %q", su.Email, role)
				}
				hash, err := bcrypt.GenerateFromPassword([]byte(su.Password), 12)
				if err != nil {
					return err
				}
				u := &domain.User{
					ID:             uuid.NewString(),
					Email:          su.Email,
					Name:           su.Name,
					Hash:           string(hash),
					Role:           role,
					Status:         domain.StatusActive,
					EmailVerified:  true,
					SellerApproved: su.Approved,
				}
				if err := users.Create(u); err != nil {
					return fmt.Errorf("user %s: %w", su.Email, err)
				}
				created++
			}

			for _, sc := range sf.Categories {
				if _, err := cats.BySlug(sc.Slug); err == nil {
					continue
				}
				parentID := ""
				if sc.Parent != "" {
					p, err := cats.BySlug(sc.Parent)
					if err != nil {
						return fmt.Errorf("category %s: parent %q not found", sc.Slug, sc.Parent)
					}
					parentID = p.ID
				}
				c := domain.Category{ID: uuid.NewString(), Slug: sc.Slug, Name: sc.Name, ParentID: parentID}
				if err := cats.Create(&c); err != nil {
					return fmt.Errorf("category %s: %w", sc.Slug, err)
				}
				created++
			}

			for _, sp := range sf.Products {
				cat, err := cats.BySlug(sp.Category)
				if err != nil {
					return fmt.Errorf("product %q: category %q not found", sp.Title, sp.Category)
				}
				seller, err := users.ByEmail(sp.Seller)
				if err != nil {
					return fmt.Errorf("product %q: seller %q not found", sp.Title, sp.Seller)
				}
				existing, err := prods.ListBySeller(seller.ID, 1000, 0)
				if err != nil {
					return err
				}
				seen := false
				for _, e := range existing {
					if e.Title == sp.Title {
						seen = true
						break
					}
				}
				if seen {
					continue
				}
				currency := sp.Currency
				if currency == "" {
					currency = "USD"
				}
				p := domain.Product{
					ID:          uuid.NewString(),
					SellerID:    seller.ID,
					CategoryID:  cat.ID,
					Title:       sp.Title,
					Description: sp.Description,
					PriceCents:  sp.PriceCents,
					Currency:    currency,
					Stock:       sp.Stock,
					Active:      true,
				}
				if err := prods.Create(&p); err != nil {
					return fmt.Errorf("product %q: %w", sp.Title, err)
				}
				created++
			}

			fmt.Printf("seed complete, %d rows created\n", created)
			return nil
		},
	}

	return cmd
}
