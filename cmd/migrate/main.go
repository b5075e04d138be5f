// Command migrate opens the database (running auto-migrations), seeds the
// default configuration keys, and optionally creates an initial admin user.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/inboxdesk/inboxdesk/internal/config"
	"github.com/inboxdesk/inboxdesk/internal/models"
	"github.com/inboxdesk/inboxdesk/internal/settings"
	"github.com/inboxdesk/inboxdesk/internal/store"
)

func main() {
	cfgPath := flag.String("config", "inboxdesk.yml", "path to config file")
	adminEmail := flag.String("admin-email", "", "create an admin account with this email")
	adminPassword := flag.String("admin-password", "", "password for the admin account")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	fmt.Printf("📂 Opening DB at %s...\n", cfg.Database.Path)
	st, err := store.NewStore(cfg.Database.Path)
	if err != nil {
		log.Fatalf("❌ Failed to open DB: %v", err)
	}

	seedConfiguration(st)

	if *adminEmail != "" {
		if *adminPassword == "" {
			log.Fatal("❌ -admin-password is required with -admin-email")
		}
		seedAdmin(st, *adminEmail, *adminPassword)
	}

	fmt.Println("\n✅ Migration complete.")
}

// seedConfiguration writes defaults for the keys the application reads,
// without overwriting values an admin has already set.
func seedConfiguration(st *store.Store) {
	fmt.Println("🔍 Seeding default configuration keys...")
	defaults := map[string]string{
		settings.KeySMTPHost:          "",
		settings.KeySMTPPort:          "587",
		settings.KeySMTPUser:          "",
		settings.KeySMTPPass:          "",
		settings.KeySMTPSecure:        "false",
		settings.KeySMTPFromEmail:     "",
		settings.KeySMTPFromName:      "Support",
		settings.KeyIMAPHost:          "",
		settings.KeyIMAPPort:          "993",
		settings.KeyIMAPUser:          "",
		settings.KeyIMAPPass:          "",
		settings.KeyBrandName:         "Support",
		settings.KeyBaseURL:           "http://localhost:9000",
		settings.KeyMailDomain:        "",
		settings.KeyEmailSignature:    "-- \nSupport Team",
		settings.KeyClientOnlyTickets: "false",
	}
	for key, value := range defaults {
		if err := st.SetConfigurationIfAbsent(key, value); err != nil {
			log.Printf("⚠️  Could not seed %s: %v", key, err)
		}
	}
}

func seedAdmin(st *store.Store, email, password string) {
	if _, err := st.GetUserByEmail(email); err == nil {
		fmt.Printf("⚠️  User %s already exists, skipping\n", email)
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("❌ Failed to hash password: %v", err)
	}
	user := &models.User{
		Email:        email,
		Name:         "Administrator",
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
		TokenExpiry:  time.Now(),
	}
	if err := st.CreateUser(user); err != nil {
		log.Fatalf("❌ Failed to create admin: %v", err)
	}
	fmt.Printf("   Created admin %s\n", email)
}
