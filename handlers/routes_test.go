package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gamification-engine/models"
	"gamification-engine/services"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Organisation{},
		&models.Role{},
		&models.Player{},
		&models.PlayerGroup{},
		&models.Task{},
		&models.GoalRule{},
		&models.Goal{},
		&models.FinishedGoal{},
		&models.FinishedTask{},
		&models.Reward{},
		&models.EarnedReward{},
		&models.MarketPlace{},
		&models.Offer{},
		&models.Bid{},
	))

	locks := services.NewKeyedLocks()
	catalog := services.NewCatalogService(db)
	players := services.NewPlayerService(db)
	goals := services.NewGoalService(db, locks)
	rewards := services.NewRewardService(db, locks)
	market := services.NewMarketService(db, locks, goals)

	app := fiber.New()
	SetupCatalogRoutes(app, catalog, db)
	SetupPlayerRoutes(app, players, goals, rewards, catalog, db)
	SetupMarketplaceRoutes(app, market, players, db)
	return app
}

// request fires a JSON request through the app and decodes the response into
// out when given. Returns the status code.
func request(t *testing.T, app *fiber.App, method, path, apiKey string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func bootstrapOrg(t *testing.T, app *fiber.App) string {
	t.Helper()
	var org struct {
		APIKey string `json:"api_key"`
	}
	status := request(t, app, http.MethodPost, "/organisations", "", fiber.Map{"name": "acme"}, &org)
	require.Equal(t, http.StatusCreated, status)
	require.NotEmpty(t, org.APIKey)
	return org.APIKey
}

func TestRoutesRequireAPIKey(t *testing.T) {
	app := newTestApp(t)

	status := request(t, app, http.MethodGet, "/players", "", nil, nil)
	require.Equal(t, http.StatusUnauthorized, status)

	status = request(t, app, http.MethodGet, "/players", "not-a-key", nil, nil)
	require.Equal(t, http.StatusUnauthorized, status)

	key := bootstrapOrg(t, app)
	status = request(t, app, http.MethodGet, "/players", key, nil, nil)
	require.Equal(t, http.StatusOK, status)
}

func TestAPIKeysIsolateOrganisations(t *testing.T) {
	app := newTestApp(t)
	keyA := bootstrapOrg(t, app)

	var orgB struct {
		APIKey string `json:"api_key"`
	}
	request(t, app, http.MethodPost, "/organisations", "", fiber.Map{"name": "rival"}, &orgB)

	var player struct {
		ID string `json:"id"`
	}
	status := request(t, app, http.MethodPost, "/players", keyA, fiber.Map{"nickname": "ada"}, &player)
	require.Equal(t, http.StatusCreated, status)

	// Org B never sees org A's players.
	status = request(t, app, http.MethodGet, "/players/"+player.ID, orgB.APIKey, nil, nil)
	require.Equal(t, http.StatusNotFound, status)
}

func TestCompleteTaskEndToEnd(t *testing.T) {
	app := newTestApp(t)
	key := bootstrapOrg(t, app)

	var task struct {
		ID string `json:"id"`
	}
	status := request(t, app, http.MethodPost, "/tasks", key, fiber.Map{"name": "Daily Login"}, &task)
	require.Equal(t, http.StatusCreated, status)

	var coins struct {
		ID string `json:"id"`
	}
	status = request(t, app, http.MethodPost, "/rewards", key,
		fiber.Map{"name": "Login Coins", "kind": "coins", "amount": 25}, &coins)
	require.Equal(t, http.StatusCreated, status)

	var rule struct {
		ID string `json:"id"`
	}
	status = request(t, app, http.MethodPost, "/rules", key,
		fiber.Map{"name": "logged in", "kind": "task", "task_mode": "one", "task_ids": []string{task.ID}}, &rule)
	require.Equal(t, http.StatusCreated, status)

	status = request(t, app, http.MethodPost, "/goals", key,
		fiber.Map{"name": "First Login", "rule_id": rule.ID, "repeatable": false, "reward_ids": []string{coins.ID}}, nil)
	require.Equal(t, http.StatusCreated, status)

	var player struct {
		ID string `json:"id"`
	}
	status = request(t, app, http.MethodPost, "/players", key, fiber.Map{"nickname": "ada"}, &player)
	require.Equal(t, http.StatusCreated, status)

	var completion struct {
		FinishedGoals []struct {
			Name string `json:"name"`
		} `json:"finished_goals"`
	}
	status = request(t, app, http.MethodPost, "/players/"+player.ID+"/complete-task/"+task.ID, key, nil, &completion)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, completion.FinishedGoals, 1)
	require.Equal(t, "First Login", completion.FinishedGoals[0].Name)

	var balances struct {
		Coins  int64 `json:"coins"`
		Points int64 `json:"points"`
	}
	status = request(t, app, http.MethodGet, "/players/"+player.ID+"/balances", key, nil, &balances)
	require.Equal(t, http.StatusOK, status)
	require.EqualValues(t, 25, balances.Coins)

	// Unknown ids map to 404 through the engine error kinds.
	status = request(t, app, http.MethodPost, "/players/missing/complete-task/"+task.ID, key, nil, nil)
	require.Equal(t, http.StatusNotFound, status)
	status = request(t, app, http.MethodPost, "/players/"+player.ID+"/complete-task/missing", key, nil, nil)
	require.Equal(t, http.StatusNotFound, status)
}

func TestMarketplaceEndToEnd(t *testing.T) {
	app := newTestApp(t)
	key := bootstrapOrg(t, app)

	var task struct {
		ID string `json:"id"`
	}
	request(t, app, http.MethodPost, "/tasks", key, fiber.Map{"name": "Dungeon", "tradeable": true}, &task)

	var alice, bob struct {
		ID string `json:"id"`
	}
	request(t, app, http.MethodPost, "/players", key, fiber.Map{"nickname": "alice", "coins": 100}, &alice)
	request(t, app, http.MethodPost, "/players", key, fiber.Map{"nickname": "bob", "coins": 0}, &bob)

	var offer struct {
		ID    string `json:"id"`
		Prize int64  `json:"prize"`
	}
	status := request(t, app, http.MethodPost, "/marketplace/offers", key,
		fiber.Map{"task_id": task.ID, "creator_id": alice.ID, "name": "Cleanup", "prize": 20}, &offer)
	require.Equal(t, http.StatusCreated, status)
	require.EqualValues(t, 20, offer.Prize)

	// Bidding with no funds is rejected as forbidden.
	status = request(t, app, http.MethodPost, "/offers/"+offer.ID+"/bids", key,
		fiber.Map{"player_id": bob.ID, "amount": 10}, nil)
	require.Equal(t, http.StatusForbidden, status)

	var completed struct {
		Status string `json:"status"`
	}
	status = request(t, app, http.MethodPost, "/offers/"+offer.ID+"/complete", key,
		fiber.Map{"player_id": bob.ID}, &completed)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "completed", completed.Status)

	// A second completion conflicts with the terminal state.
	status = request(t, app, http.MethodPost, "/offers/"+offer.ID+"/complete", key,
		fiber.Map{"player_id": bob.ID}, nil)
	require.Equal(t, http.StatusConflict, status)

	var balances struct {
		Coins int64 `json:"coins"`
	}
	request(t, app, http.MethodGet, "/players/"+bob.ID+"/balances", key, nil, &balances)
	require.EqualValues(t, 20, balances.Coins)
}
