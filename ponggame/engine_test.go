package ponggame

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testConfig() Config {
	return BuildConfig(DefaultBaseConfig())
}

func TestMovePaddles_ApproachesTargetSpeed(t *testing.T) {
	cfg := testConfig()
	st := &SimulationState{}

	// First tick: velocity is a fraction of the target, not the full speed.
	MovePaddles(st, 1, 0, cfg)
	assert.InDelta(t, cfg.PaddleSpeed*cfg.PaddleAccel, st.P1Vel, 1e-9)
	assert.Equal(t, st.P1Vel, st.P1Y)
	assert.Equal(t, 0.0, st.P2Y) // no input holds the paddle

	// Held input converges on the configured paddle speed.
	for i := 0; i < 200; i++ {
		MovePaddles(st, 1, 0, cfg)
	}
	assert.InDelta(t, cfg.PaddleSpeed, st.P1Vel, 1e-3)
}

func TestMovePaddles_ClampsToLimit(t *testing.T) {
	cfg := testConfig()
	st := &SimulationState{}

	for i := 0; i < 500; i++ {
		MovePaddles(st, 1, -1, cfg)
		assert.LessOrEqual(t, st.P1Y, cfg.PaddleLimit)
		assert.GreaterOrEqual(t, st.P2Y, -cfg.PaddleLimit)
	}
	assert.Equal(t, cfg.PaddleLimit, st.P1Y)
	assert.Equal(t, -cfg.PaddleLimit, st.P2Y)
}

func TestMoveBall_WallBounce(t *testing.T) {
	cfg := testConfig()
	rng := rand.New(rand.NewSource(1))
	st := &SimulationState{BallY: cfg.HalfHeight - 0.1, BallVY: 0.3}

	side := MoveBall(st, cfg, rng)
	assert.Equal(t, Side(""), side)
	assert.Equal(t, cfg.HalfHeight, st.BallY) // snapped to the wall
	assert.Equal(t, -0.3, st.BallVY)          // vertical speed inverted
}

func TestMoveBall_PaddleEdgeCountsAsHit(t *testing.T) {
	cfg := testConfig()
	rng := rand.New(rand.NewSource(1))
	plane := cfg.HalfWidth - cfg.PaddleInset

	// Ball arrives exactly at the paddle's half-extent: still a hit.
	st := &SimulationState{
		BallX:  -plane + 0.1,
		BallY:  cfg.PaddleSize / 2,
		BallVX: -0.3,
		P1Y:    0,
	}

	side := MoveBall(st, cfg, rng)
	assert.Equal(t, Side(""), side)
	assert.Equal(t, 0, st.ScoreR)
	assert.Equal(t, -plane, st.BallX) // snapped to the paddle plane
	assert.InDelta(t, 0.3*BallSpeedup, st.BallVX, 1e-9)

	// Edge hit means full spin, capped relative to horizontal speed.
	assert.InDelta(t, SpinCapRatio*0.3, st.BallVY, 1e-9)
}

func TestMoveBall_MissedPaddleScores(t *testing.T) {
	cfg := testConfig()
	rng := rand.New(rand.NewSource(1))
	plane := cfg.HalfWidth - cfg.PaddleInset

	// Just beyond the paddle edge: a goal for the right player.
	st := &SimulationState{
		BallX:  -plane + 0.1,
		BallY:  cfg.PaddleSize/2 + 0.2,
		BallVX: -0.3,
		P1Y:    0,
	}

	side := MoveBall(st, cfg, rng)
	assert.Equal(t, SideLeft, side) // left conceded
	assert.Equal(t, 1, st.ScoreR)
	assert.Equal(t, 0, st.ScoreL)

	// Serve recenters the ball with a fresh serve velocity.
	assert.Equal(t, 0.0, st.BallX)
	assert.Equal(t, 0.0, st.BallY)
	speed := math.Hypot(st.BallVX, st.BallVY)
	assert.InDelta(t, ServeSpeed, speed, 1e-9)
}

func TestMoveBall_SpeedCapped(t *testing.T) {
	cfg := testConfig()
	rng := rand.New(rand.NewSource(1))
	plane := cfg.HalfWidth - cfg.PaddleInset

	st := &SimulationState{BallVX: -0.3}
	// Bounce the ball between the paddles until the speedup saturates.
	for i := 0; i < 50; i++ {
		if st.BallVX < 0 {
			st.BallX = -plane + 0.01
			st.P1Y = st.BallY
		} else {
			st.BallX = plane - 0.01
			st.P2Y = st.BallY
		}
		side := MoveBall(st, cfg, rng)
		assert.Equal(t, Side(""), side)
		assert.LessOrEqual(t, math.Abs(st.BallVX), MaxBallSpeed)
	}
	assert.InDelta(t, MaxBallSpeed, math.Abs(st.BallVX), 1e-9)
}

func TestResetBall_ServeDistribution(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	var left, right int
	for i := 0; i < 200; i++ {
		vx, vy := ResetBall(rng)

		assert.InDelta(t, ServeSpeed, math.Hypot(vx, vy), 1e-9)
		assert.NotZero(t, vx)
		// The serve angle stays within 45 degrees of horizontal.
		assert.LessOrEqual(t, math.Abs(vy), math.Abs(vx)+1e-9)

		if vx < 0 {
			left++
		} else {
			right++
		}
	}
	// Both serve directions occur; rough uniformity is enough here.
	assert.Greater(t, left, 50)
	assert.Greater(t, right, 50)
}

func TestBuildConfig_Derivation(t *testing.T) {
	base := DefaultBaseConfig()
	cfg := BuildConfig(base)

	assert.Equal(t, base.FieldWidth/2, cfg.HalfWidth)
	assert.Equal(t, base.FieldHeight/2, cfg.HalfHeight)
	assert.Equal(t, base.FieldHeight*base.PaddleRatio, cfg.PaddleSize)
	assert.Equal(t, cfg.HalfHeight-cfg.PaddleSize/2, cfg.PaddleLimit)
	assert.Equal(t, base.MaxScore, cfg.MaxScore)

	// Same base, same config: rooms can share it verbatim with clients.
	assert.Equal(t, cfg, BuildConfig(base))
}
