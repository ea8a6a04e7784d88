package simulation

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"steelrain/sim/internal/ai"
	"steelrain/sim/internal/config"
	"steelrain/sim/internal/events"
	"steelrain/sim/internal/logging"
	"steelrain/sim/internal/movement"
	"steelrain/sim/internal/physics"
	"steelrain/sim/internal/projectile"
	"steelrain/sim/internal/replay"
	"steelrain/sim/internal/session"
	"steelrain/sim/internal/tank"
	"steelrain/sim/internal/terrain"
	"steelrain/sim/internal/weapons"
)

const (
	// tankAnchorDepth is how far below the surface sample a tank's anchor
	// point sits, matching the hull resting on the terrain.
	tankAnchorDepth = 20.0
	// flightStep is the real-time resolution used when integrating flights.
	flightStep = 0.005
	// roundWinAward is credited to the last tank standing after a round.
	roundWinAward = 500
	// survivalAward is credited to every tank still alive at round end.
	survivalAward = 100
	// retreatFuelBudget is the fuel a tank is willing to burn backing away
	// from a dangerously close enemy.
	retreatFuelBudget = 10.0
	// maxTurnsPerRound bounds a round so two entrenched tanks cannot stall
	// the match forever.
	maxTurnsPerRound = 200
)

// tankPalette colours combatants in join order.
var tankPalette = []string{"#d64545", "#4582d6", "#45d68a", "#d6c145", "#9a45d6", "#d67e45"}

// ErrNoCombatants is returned when a match starts with an empty roster.
var ErrNoCombatants = errors.New("match requires at least two combatants")

// Match orchestrates a full best-of-N-rounds duel: terrain setup, turn order,
// flight resolution, damage, economy and telemetry.
type Match struct {
	cfg     *config.Config
	log     *logging.Logger
	engine  *ai.Engine
	sess    *session.Session
	stream  *events.Stream
	journal *replay.Journal
	tanks   *tank.Store
	rng     *rand.Rand
	tier    ai.Tier

	order []string
	wins  map[string]int
	terr  *terrain.Terrain
	round int
	turn  uint64
}

// NewMatch wires a match from its collaborators and registers the roster.
// The journal may be nil when persistence is disabled.
func NewMatch(cfg *config.Config, sess *session.Session, stream *events.Stream, journal *replay.Journal, engine *ai.Engine, rng *rand.Rand, log *logging.Logger) (*Match, error) {
	if cfg == nil {
		return nil, errors.New("config must be provided")
	}
	if sess == nil || stream == nil || engine == nil {
		return nil, errors.New("session, stream and engine must be provided")
	}
	if cfg.TankCount < 2 {
		return nil, ErrNoCombatants
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	if log == nil {
		log = logging.L()
	}
	tier, err := ai.TierAt(cfg.Difficulty)
	if err != nil {
		return nil, err
	}

	match := &Match{
		cfg:     cfg,
		log:     log,
		engine:  engine,
		sess:    sess,
		stream:  stream,
		journal: journal,
		tanks:   tank.NewStore(),
		rng:     rng,
		tier:    tier,
		wins:    make(map[string]int),
	}

	//1.- Register the roster with the session so the economy tracks everyone.
	for i := 0; i < cfg.TankCount; i++ {
		id := fmt.Sprintf("tank-%d", i+1)
		if _, err := sess.Join(id); err != nil {
			return nil, fmt.Errorf("join %s: %w", id, err)
		}
		match.order = append(match.order, id)
	}
	return match, nil
}

// Tanks exposes the live battlefield store for spectator broadcasting.
func (m *Match) Tanks() *tank.Store {
	if m == nil {
		return nil
	}
	return m.tanks
}

// Terrain returns the current round's battlefield.
func (m *Match) Terrain() *terrain.Terrain {
	if m == nil {
		return nil
	}
	return m.terr
}

// Run plays every configured round and reports the overall winner, which is
// empty when the match ends in a draw.
func (m *Match) Run() (string, error) {
	if m == nil {
		return "", errors.New("match not initialised")
	}
	for round := 1; round <= m.cfg.Rounds; round++ {
		if err := m.StartRound(round); err != nil {
			return "", err
		}
		winner, err := m.playRound()
		if err != nil {
			return "", err
		}
		m.settleRound(winner)
	}

	overall := m.overallWinner()
	if _, err := m.stream.PublishLifecycle(events.LifecycleEvent{Phase: events.PhaseMatchEnded, Round: m.round, WinnerID: overall}); err != nil {
		return "", err
	}
	m.journalEvent("match_ended", map[string]any{"winner": overall, "wins": m.wins})
	m.log.Info("match finished", logging.String("winner", overall))
	return overall, nil
}

// StartRound regenerates the battlefield, respawns the roster and rolls wind.
func (m *Match) StartRound(round int) error {
	if m == nil {
		return errors.New("match not initialised")
	}
	m.round = round
	m.turn = 0

	//1.- Derive a per-round seed so replays can regenerate every battlefield.
	seed := m.rng.Int63()
	if m.cfg.TerrainSeed != nil {
		seed = *m.cfg.TerrainSeed + int64(round-1)
	}
	height := float64(m.cfg.ArenaHeight)
	terr, err := terrain.Generate(terrain.Config{
		Width:     m.cfg.ArenaWidth,
		Height:    height,
		Roughness: m.cfg.Roughness,
		MinHeight: height * 0.35,
		MaxHeight: height * 0.8,
		Seed:      &seed,
	})
	if err != nil {
		return fmt.Errorf("round %d terrain: %w", round, err)
	}
	m.terr = terr

	//2.- Respawn the roster evenly spaced with a little lateral jitter.
	width := float64(m.cfg.ArenaWidth)
	spacing := width / float64(len(m.order)+1)
	for i, id := range m.order {
		x := spacing * float64(i+1)
		x += (m.rng.Float64()*2 - 1) * spacing * 0.2
		x = clampX(x, width)
		state := &tank.State{
			ID:     id,
			X:      x,
			Y:      m.surfaceAnchor(x),
			Health: tank.MaxHealth,
			Power:  50,
			Fuel:   tank.MaxFuel,
			Color:  tankPalette[i%len(tankPalette)],
			Alive:  true,
		}
		m.tanks.Upsert(state)
	}

	//3.- Roll the round's wind and reset per-round targeting memory.
	wind := (m.rng.Float64()*2 - 1) * m.cfg.MaxWind
	m.sess.StartRound(round, wind)

	if _, err := m.stream.PublishLifecycle(events.LifecycleEvent{Phase: events.PhaseRoundStarted, Round: round}); err != nil {
		return err
	}
	m.journalEvent("round_started", map[string]any{"round": round, "wind": wind, "terrain_seed": seed})
	m.journalSnapshot()
	m.log.Info("round started",
		logging.Int("round", round), logging.Float64("wind", wind))
	return nil
}

// playRound cycles turns until one tank remains or the turn cap is hit.
func (m *Match) playRound() (string, error) {
	for m.turn < maxTurnsPerRound {
		for _, id := range m.order {
			shooter, ok := m.tanks.Get(id)
			if !ok || !shooter.Alive {
				continue
			}
			over, winner, err := m.PlayTurn(id)
			if err != nil {
				return "", err
			}
			if over {
				return winner, nil
			}
		}
	}
	//1.- A stalled round is a draw: nobody collects the win award.
	m.log.Warn("round stalled at turn cap", logging.Int("round", m.round))
	return "", nil
}

// PlayTurn executes one complete turn for the shooter: optional retreat,
// decision, flight resolution and damage application.
func (m *Match) PlayTurn(shooterID string) (bool, string, error) {
	if m == nil || m.terr == nil {
		return false, "", errors.New("round not started")
	}
	shooter, ok := m.tanks.Get(shooterID)
	if !ok || !shooter.Alive {
		return m.roundStatus()
	}
	m.turn++

	roster := m.rosterSnapshot()
	//1.- Back away first when an enemy is uncomfortably close.
	if moved := m.maybeRetreat(&shooter, roster); moved {
		roster = m.rosterSnapshot()
	}

	decision, ok := m.engine.Decide(shooter, roster, m.terr, m.sess.Wind(), m.tier, m.sess.Aim(), m.sess.Inventory(shooterID))
	if !ok {
		return m.roundStatus()
	}

	//2.- Spend the chosen weapon, falling back to the free default when the
	// stock ran out between selection and firing.
	weaponID := decision.WeaponID
	if !m.sess.ConsumeWeapon(shooterID, weaponID) {
		weaponID = weapons.DefaultWeaponID
	}
	weapon, err := weapons.Resolve(weaponID)
	if err != nil {
		weapon = weapons.Default()
	}

	shooter.AngleDeg = decision.AngleDeg
	shooter.Power = decision.Power
	m.tanks.Upsert(&shooter)

	shot := events.ShotEvent{
		Shooter:  shooterID,
		Target:   decision.TargetID,
		WeaponID: weapon.ID,
		AngleDeg: decision.AngleDeg,
		Power:    decision.Power,
		Wind:     m.sess.Wind(),
	}
	if _, err := m.stream.PublishShot(m.round, m.turn, shot); err != nil {
		return false, "", err
	}
	m.journalEvent("shot_fired", shot)

	//3.- Integrate the flight, including bounces and cluster children.
	launch := physics.LaunchConfig{
		Origin:     physics.Point{X: shooter.X, Y: shooter.Y},
		AngleDeg:   decision.AngleDeg + 90,
		Power:      decision.Power,
		ArenaWidth: float64(m.cfg.ArenaWidth),
		Wind:       m.sess.Wind(),
	}
	impacts := m.resolveFlight(launch, weapon)

	//4.- Apply splash damage per detonation and broadcast the results.
	for _, impact := range impacts {
		report := m.applyBlast(shooterID, weapon, impact)
		if _, err := m.stream.PublishImpact(m.round, m.turn, report); err != nil {
			return false, "", err
		}
		m.journalEvent("impact", report)
	}
	m.journalSnapshot()
	return m.roundStatus()
}

// resolveFlight steps the projectile, its bounces and any cluster children
// until every fragment has resolved, returning the detonation points.
func (m *Match) resolveFlight(launch physics.LaunchConfig, weapon weapons.Spec) []physics.Point {
	animSpeed := m.cfg.AnimationSpeed
	if animSpeed <= 0 {
		animSpeed = 1
	}
	//1.- Bounces restart a fragment's clock, so budget several full lifetimes.
	horizon := projectile.MaxLifetimeSeconds * 5 / animSpeed

	active := []projectile.State{projectile.New(launch, weapon, 0)}
	var impacts []physics.Point
	for now := flightStep; len(active) > 0 && now <= horizon; now += flightStep {
		next := make([]projectile.State, 0, len(active))
		for _, p := range active {
			transition := p.Step(now, animSpeed, m.terr)
			switch transition.Kind {
			case projectile.TransitionNone, projectile.TransitionBounce:
				next = append(next, transition.Next)
			case projectile.TransitionSplit:
				next = append(next, transition.Children...)
			case projectile.TransitionExplode:
				if transition.Impact != nil {
					impacts = append(impacts, *transition.Impact)
				}
			case projectile.TransitionOutOfBounds:
			}
		}
		active = next
	}
	return impacts
}

// applyBlast damages every living tank inside the blast radius and reports
// the outcome.
func (m *Match) applyBlast(shooterID string, weapon weapons.Spec, impact physics.Point) events.ImpactEvent {
	report := events.ImpactEvent{Shooter: shooterID, WeaponID: weapon.ID, X: impact.X, Y: impact.Y}
	for _, state := range m.tanks.Snapshot() {
		if state == nil || !state.Alive {
			continue
		}
		distance := math.Hypot(state.X-impact.X, state.Y-impact.Y)
		damage := weapon.SplashDamageAt(distance)
		if damage <= 0 {
			continue
		}
		state.Health -= damage
		destroyed := state.Health <= 0
		if destroyed {
			state.Health = 0
			state.Alive = false
		}
		m.tanks.Upsert(state)
		report.Victims = append(report.Victims, events.DamageDetail{
			TankID:    state.ID,
			Amount:    damage,
			Destroyed: destroyed,
		})
		if destroyed {
			m.log.Info("tank destroyed",
				logging.String("tank", state.ID), logging.String("by", shooterID))
		}
	}
	return report
}

// maybeRetreat burns a small fuel budget moving away from the nearest enemy
// when it sits dangerously close. Reports whether the tank moved.
func (m *Match) maybeRetreat(shooter *tank.State, roster []tank.State) bool {
	width := float64(m.cfg.ArenaWidth)
	nearest, nearestDist := "", math.MaxFloat64
	for _, other := range roster {
		if !other.Alive || other.ID == shooter.ID {
			continue
		}
		if d := math.Abs(other.X - shooter.X); d < nearestDist {
			nearest, nearestDist = other.ID, d
		}
	}
	if nearest == "" || nearestDist > width*0.1 || shooter.Fuel < retreatFuelBudget {
		return false
	}

	//1.- Request the full fuel budget's worth of distance directly away.
	step := movement.DistanceForFuel(retreatFuelBudget, width)
	requested := shooter.X + step
	for _, other := range roster {
		if other.ID == nearest && other.X > shooter.X {
			requested = shooter.X - step
		}
	}
	target := movement.ResolveTarget(*shooter, requested, width, roster)
	distance := math.Abs(target - shooter.X)
	if distance < 1 {
		return false
	}
	cost := movement.FuelForDistance(distance, width)
	if float64(cost) > shooter.Fuel {
		return false
	}

	//2.- Land on the terrain at the destination and debit the fuel.
	from := shooter.X
	pos := movement.PositionAt(shooter.X, target, 1, m.terr)
	shooter.X = pos.X
	shooter.Y = pos.Y + tankAnchorDepth
	shooter.Fuel -= float64(cost)
	m.tanks.Upsert(shooter)

	move := events.MovementEvent{TankID: shooter.ID, FromX: from, ToX: shooter.X, FuelSpent: float64(cost)}
	if _, err := m.stream.PublishMovement(m.round, m.turn, move); err != nil {
		m.log.Warn("movement publish failed", logging.Error(err))
	}
	m.journalEvent("movement", move)
	return true
}

// settleRound awards credits, runs the shopping phase and closes the round.
func (m *Match) settleRound(winner string) {
	if winner != "" {
		m.wins[winner]++
		if err := m.sess.Credit(winner, roundWinAward); err != nil {
			m.log.Warn("win award failed", logging.Error(err))
		}
	}
	for _, state := range m.tanks.Snapshot() {
		if state == nil || !state.Alive || state.ID == winner {
			continue
		}
		if err := m.sess.Credit(state.ID, survivalAward); err != nil {
			m.log.Warn("survival award failed", logging.Error(err))
		}
	}

	//1.- Between rounds every tank may restock according to its tier.
	for _, id := range m.order {
		balance, ok := m.sess.Balance(id)
		if !ok {
			continue
		}
		plan := m.engine.PlanPurchases(m.tier, balance, m.sess.Inventory(id))
		if len(plan) == 0 {
			continue
		}
		if err := m.sess.ApplyPurchases(id, plan); err != nil {
			m.log.Warn("purchase plan rejected",
				logging.String("tank", id), logging.Error(err))
			continue
		}
		remaining, _ := m.sess.Balance(id)
		for _, purchase := range plan {
			event := events.PurchaseEvent{TankID: id, WeaponID: purchase.WeaponID, Cost: purchase.Cost, Balance: remaining}
			if _, err := m.stream.PublishPurchase(m.round, event); err != nil {
				m.log.Warn("purchase publish failed", logging.Error(err))
			}
			m.journalEvent("purchase", event)
		}
	}

	if _, err := m.stream.PublishLifecycle(events.LifecycleEvent{Phase: events.PhaseRoundEnded, Round: m.round, WinnerID: winner}); err != nil {
		m.log.Warn("lifecycle publish failed", logging.Error(err))
	}
	m.journalEvent("round_ended", map[string]any{"round": m.round, "winner": winner})
	m.log.Info("round ended",
		logging.Int("round", m.round), logging.String("winner", winner))
}

// roundStatus reports whether the round is over and who remains.
func (m *Match) roundStatus() (bool, string, error) {
	living := make([]string, 0, len(m.order))
	for _, state := range m.tanks.Snapshot() {
		if state != nil && state.Alive {
			living = append(living, state.ID)
		}
	}
	switch len(living) {
	case 0:
		return true, "", nil
	case 1:
		return true, living[0], nil
	default:
		return false, "", nil
	}
}

func (m *Match) overallWinner() string {
	best, bestWins := "", 0
	tied := false
	for _, id := range m.order {
		switch {
		case m.wins[id] > bestWins:
			best, bestWins = id, m.wins[id]
			tied = false
		case m.wins[id] == bestWins && bestWins > 0:
			tied = true
		}
	}
	if tied || bestWins == 0 {
		return ""
	}
	return best
}

func (m *Match) rosterSnapshot() []tank.State {
	states := m.tanks.Snapshot()
	roster := make([]tank.State, 0, len(states))
	for _, state := range states {
		if state != nil {
			roster = append(roster, *state)
		}
	}
	return roster
}

func (m *Match) surfaceAnchor(x float64) float64 {
	if surface, ok := m.terr.InterpolatedHeightAt(x); ok {
		return surface + tankAnchorDepth
	}
	return float64(m.cfg.ArenaHeight) / 2
}

func (m *Match) journalEvent(eventType string, payload any) {
	if m.journal == nil {
		return
	}
	if err := m.journal.AppendEvent(m.round, m.turn, eventType, payload); err != nil {
		m.log.Warn("journal event failed", logging.Error(err))
	}
}

func (m *Match) journalSnapshot() {
	if m.journal == nil {
		return
	}
	payload, err := encodeRoster(m.rosterSnapshot())
	if err != nil {
		m.log.Warn("snapshot encode failed", logging.Error(err))
		return
	}
	if err := m.journal.AppendSnapshot(m.round, m.turn, payload); err != nil {
		m.log.Warn("journal snapshot failed", logging.Error(err))
	}
}

// encodeRoster serialises the battlefield for journal snapshots, sorted so
// identical states always produce identical bytes.
func encodeRoster(roster []tank.State) ([]byte, error) {
	sort.Slice(roster, func(i, j int) bool { return roster[i].ID < roster[j].ID })
	return json.Marshal(roster)
}

func clampX(x, width float64) float64 {
	margin := movement.TankBodyWidth / 2
	if x < margin {
		return margin
	}
	if x > width-margin {
		return width - margin
	}
	return x
}
