package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/keyhaven/wallet-core/internal/api"
	"github.com/keyhaven/wallet-core/internal/backup"
	"github.com/keyhaven/wallet-core/internal/cache"
	"github.com/keyhaven/wallet-core/internal/config"
	"github.com/keyhaven/wallet-core/internal/descriptor"
	"github.com/keyhaven/wallet-core/internal/logger"
	"github.com/keyhaven/wallet-core/internal/secretstore"
	"github.com/keyhaven/wallet-core/internal/wallet"
)

var rootCmd = &cobra.Command{
	Use:   "walletcore",
	Short: "Wallet custody daemon and CLI",
	Long:  `A multi-wallet key custody manager with both interactive and CLI modes.`,
}

func init() {
	rootCmd.AddCommand(createWalletCmd)
	rootCmd.AddCommand(importWalletCmd)
	rootCmd.AddCommand(listWalletsCmd)
	rootCmd.AddCommand(currentWalletCmd)
	rootCmd.AddCommand(switchWalletCmd)
	rootCmd.AddCommand(createAccountCmd)
	rootCmd.AddCommand(deleteWalletCmd)
	rootCmd.AddCommand(setCredentialCmd)
	rootCmd.AddCommand(unlockCmd)
	rootCmd.AddCommand(lockCmd)
	rootCmd.AddCommand(exportMnemonicCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(serveCmd)

	restoreCmd.Flags().Bool("overwrite", false, "replace wallets that already exist")
	backupCmd.Flags().Bool("include-settings", false, "include preferences in the backup")
}

func initConfig() {
	if err := config.LoadConfig(); err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}
	logger.Init()
}

func main() {
	initConfig()
	defer logger.Cleanup()

	if len(os.Args) > 1 {
		if err := rootCmd.Execute(); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	} else {
		interactiveMode()
	}
}

// core bundles the three tiers and the services built on them.
type core struct {
	descriptors *descriptor.Store
	manager     *wallet.Manager
	backup      *backup.Service
}

func (c *core) Close() {
	c.manager.Close()
	if err := c.descriptors.Close(); err != nil {
		logger.Error("Error closing descriptor store:", err)
	}
}

func cacheTTLOverrides() map[cache.Class]time.Duration {
	overrides := make(map[cache.Class]time.Duration)
	for class, key := range map[cache.Class]string{
		cache.ClassBalance: "cache_ttl_balance",
		cache.ClassPrice:   "cache_ttl_price",
		cache.ClassGas:     "cache_ttl_gas",
		cache.ClassNFT:     "cache_ttl_nft",
		cache.ClassDApp:    "cache_ttl_dapp",
		cache.ClassQuote:   "cache_ttl_quote",
	} {
		raw := viper.GetString(key)
		if raw == "" {
			continue
		}
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			logger.Error("Ignoring invalid", key, ":", raw)
			continue
		}
		overrides[class] = ttl
	}
	return overrides
}

func openCore() (*core, error) {
	dataDir := viper.GetString("data_dir")
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("error creating data directory: %v", err)
	}

	deviceKey, err := secretstore.LoadOrCreateDeviceKey(filepath.Join(dataDir, viper.GetString("device_key_file")))
	if err != nil {
		return nil, err
	}
	secrets, err := secretstore.Open(filepath.Join(dataDir, viper.GetString("secret_dir")), deviceKey)
	if err != nil {
		return nil, err
	}
	descriptors, err := descriptor.Open(filepath.Join(dataDir, viper.GetString("descriptor_db")))
	if err != nil {
		return nil, err
	}

	manager := wallet.NewManager(secrets, descriptors, cache.NewWithTTLs(cacheTTLOverrides()),
		wallet.NewDigestVerifier(descriptors), wallet.Options{
			SessionWindow:         viper.GetDuration("session_window"),
			FirstWalletAutoUnlock: viper.GetBool("first_wallet_auto_unlock"),
			NetworkID:             viper.GetString("network_id"),
		})

	return &core{
		descriptors: descriptors,
		manager:     manager,
		backup:      backup.NewService(secrets, descriptors),
	}, nil
}

func withCore(run func(c *core) error) {
	c, err := openCore()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening wallet stores: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	if err := run(c); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printJSON(v interface{}) {
	json.NewEncoder(os.Stdout).Encode(v)
}

var createWalletCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a new wallet with a fresh seed",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withCore(func(c *core) error {
			walletID, err := c.manager.CreateWallet(wallet.CreateParams{Name: args[0]})
			if err != nil {
				return err
			}
			printJSON(map[string]string{"wallet_id": walletID})
			return nil
		})
	},
}

var importWalletCmd = &cobra.Command{
	Use:   "import [name] [mnemonic...]",
	Short: "Import a wallet from an existing seed phrase",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		withCore(func(c *core) error {
			walletID, err := c.manager.ImportWallet(args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			printJSON(map[string]string{"wallet_id": walletID})
			return nil
		})
	},
}

var listWalletsCmd = &cobra.Command{
	Use:   "list",
	Short: "List wallets in display order",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		withCore(func(c *core) error {
			wallets, err := c.manager.GetAllWallets()
			if err != nil {
				return err
			}
			printJSON(wallets)
			return nil
		})
	},
}

var currentWalletCmd = &cobra.Command{
	Use:   "current",
	Short: "Show the current wallet and account",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		withCore(func(c *core) error {
			current, err := c.manager.GetCurrentWallet()
			if err != nil {
				return err
			}
			printJSON(current)
			return nil
		})
	},
}

var switchWalletCmd = &cobra.Command{
	Use:   "switch [wallet-id] [account-id]",
	Short: "Switch the current wallet (and optionally account)",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		withCore(func(c *core) error {
			accountID := ""
			if len(args) > 1 {
				accountID = args[1]
			}
			if err := c.manager.SwitchWallet(args[0], accountID); err != nil {
				return err
			}
			printJSON(map[string]string{"status": "switched"})
			return nil
		})
	},
}

var createAccountCmd = &cobra.Command{
	Use:   "create-account [wallet-id] [name]",
	Short: "Derive the wallet's next account",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		withCore(func(c *core) error {
			name := ""
			if len(args) > 1 {
				name = args[1]
			}
			account, err := c.manager.CreateAccount(args[0], name)
			if err != nil {
				return err
			}
			printJSON(account)
			return nil
		})
	},
}

var deleteWalletCmd = &cobra.Command{
	Use:   "delete [wallet-id] [confirmation]",
	Short: "Delete a wallet (confirmation must repeat the wallet id)",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		withCore(func(c *core) error {
			if err := c.manager.DeleteWallet(args[0], args[1]); err != nil {
				return err
			}
			printJSON(map[string]string{"status": "deleted"})
			return nil
		})
	},
}

var setCredentialCmd = &cobra.Command{
	Use:   "set-credential [credential]",
	Short: "Set the unlock credential",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withCore(func(c *core) error {
			if err := wallet.SetCredential(c.descriptors, args[0]); err != nil {
				return err
			}
			printJSON(map[string]string{"status": "credential set"})
			return nil
		})
	},
}

var unlockCmd = &cobra.Command{
	Use:   "unlock [credential]",
	Short: "Unlock the session",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withCore(func(c *core) error {
			if err := c.manager.Unlock(args[0]); err != nil {
				return err
			}
			printJSON(map[string]string{"status": "unlocked"})
			return nil
		})
	},
}

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Lock the session",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		withCore(func(c *core) error {
			if err := c.manager.Lock(); err != nil {
				return err
			}
			printJSON(map[string]string{"status": "locked"})
			return nil
		})
	},
}

var exportMnemonicCmd = &cobra.Command{
	Use:   "export-mnemonic [wallet-id]",
	Short: "Print a wallet's seed phrase (requires an active session)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withCore(func(c *core) error {
			mnemonic, err := c.manager.ExportMnemonic(args[0])
			if err != nil {
				return err
			}
			printJSON(map[string]string{"mnemonic": mnemonic})
			return nil
		})
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup [file] [passphrase]",
	Short: "Write a backup of all wallets to a file",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		withCore(func(c *core) error {
			passphrase := ""
			if len(args) > 1 {
				passphrase = args[1]
			}
			includeSettings, _ := cmd.Flags().GetBool("include-settings")
			payload, err := c.backup.Create(backup.CreateOptions{
				Passphrase:      passphrase,
				IncludeSettings: includeSettings,
			})
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[0], payload, 0600); err != nil {
				return fmt.Errorf("error writing backup file: %v", err)
			}
			printJSON(map[string]string{"status": "backup written", "file": args[0]})
			return nil
		})
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore [file] [passphrase]",
	Short: "Restore wallets from a backup file",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		withCore(func(c *core) error {
			payload, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("error reading backup file: %v", err)
			}
			passphrase := ""
			if len(args) > 1 {
				passphrase = args[1]
			}
			overwrite, _ := cmd.Flags().GetBool("overwrite")
			result, err := c.backup.Restore(payload, backup.RestoreOptions{
				Passphrase:        passphrase,
				OverwriteExisting: overwrite,
			})
			if err != nil {
				return err
			}
			printJSON(result)
			return nil
		})
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP daemon for a local frontend",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		withCore(func(c *core) error {
			jwtKey, err := api.EnsureJWTKey(filepath.Join(viper.GetString("data_dir"), viper.GetString("jwt_key_file")))
			if err != nil {
				return err
			}
			tokenTTL, err := time.ParseDuration(viper.GetString("jwt_token_ttl"))
			if err != nil {
				tokenTTL = api.DefaultTokenTTL
			}

			c.manager.StartAutoLock(viper.GetDuration("auto_lock_interval"))
			defer c.manager.StopAutoLock()

			server := api.NewAPI(c.manager, c.backup, jwtKey, tokenTTL)
			return server.Serve()
		})
	},
}

func interactiveMode() {
	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Println("\nWallet Custody Manager")
		fmt.Println("1. Create a new wallet")
		fmt.Println("2. Import an existing wallet")
		fmt.Println("3. List wallets")
		fmt.Println("4. Unlock session")
		fmt.Println("5. Lock session")
		fmt.Println("6. Start the HTTP daemon")
		fmt.Println("7. Exit")
		fmt.Print("\nEnter your choice (1-7): ")
		choice, _ := reader.ReadString('\n')
		choice = strings.TrimSpace(choice)

		switch choice {
		case "1":
			fmt.Print("Wallet name: ")
			name, _ := reader.ReadString('\n')
			runInteractive(func(c *core) error {
				walletID, err := c.manager.CreateWallet(wallet.CreateParams{Name: strings.TrimSpace(name)})
				if err != nil {
					return err
				}
				fmt.Println("Created wallet", walletID)
				return nil
			})
		case "2":
			fmt.Print("Wallet name: ")
			name, _ := reader.ReadString('\n')
			fmt.Print("Seed phrase: ")
			mnemonic, _ := reader.ReadString('\n')
			runInteractive(func(c *core) error {
				walletID, err := c.manager.ImportWallet(strings.TrimSpace(name), strings.TrimSpace(mnemonic))
				if err != nil {
					return err
				}
				fmt.Println("Imported wallet", walletID)
				return nil
			})
		case "3":
			runInteractive(func(c *core) error {
				wallets, err := c.manager.GetAllWallets()
				if err != nil {
					return err
				}
				for _, w := range wallets {
					fmt.Printf("%s  %s (%s)\n", w.ID, w.Name, w.Category)
				}
				return nil
			})
		case "4":
			fmt.Print("Credential: ")
			credential, _ := reader.ReadString('\n')
			runInteractive(func(c *core) error {
				if err := c.manager.Unlock(strings.TrimSpace(credential)); err != nil {
					return err
				}
				fmt.Println("Session unlocked")
				return nil
			})
		case "5":
			runInteractive(func(c *core) error {
				if err := c.manager.Lock(); err != nil {
					return err
				}
				fmt.Println("Session locked")
				return nil
			})
		case "6":
			serveCmd.Run(serveCmd, nil)
		case "7":
			fmt.Println("Exiting program. Goodbye!")
			return
		default:
			fmt.Println("Invalid choice. Please try again.")
		}
	}
}

// runInteractive is withCore without the os.Exit, so one failed menu
// action does not end the session.
func runInteractive(run func(c *core) error) {
	c, err := openCore()
	if err != nil {
		log.Printf("Error opening wallet stores: %v", err)
		return
	}
	defer c.Close()

	if err := run(c); err != nil {
		log.Printf("Error: %v", err)
	}
}
