package ponggame

import (
	"math"
	"math/rand"
)

// Physics constants shared by server authority and client prediction.
const (
	// ServeSpeed is the ball speed magnitude right after a serve.
	ServeSpeed = 0.3
	// BallSpeedup multiplies the horizontal speed on every paddle hit.
	BallSpeedup = 1.1
	// MaxBallSpeed caps the horizontal speed magnitude.
	MaxBallSpeed = 0.9
	// SpinFactor scales the vertical kick from an off-center paddle hit.
	SpinFactor = 0.5
	// SpinCapRatio caps the vertical speed relative to the horizontal speed.
	SpinCapRatio = 0.75

	paddleInset = 4.0

	// serveAngleMax bounds the serve angle to ±45° of horizontal travel.
	serveAngleMax = math.Pi / 4
)

// MovePaddles advances both paddles one tick. The actual paddle speed
// approaches the input target exponentially, then position is clamped so
// the paddle never leaves the field.
func MovePaddles(st *SimulationState, left, right int, cfg Config) {
	st.P1Y, st.P1Vel = movePaddle(st.P1Y, st.P1Vel, left, cfg)
	st.P2Y, st.P2Vel = movePaddle(st.P2Y, st.P2Vel, right, cfg)
}

func movePaddle(y, vel float64, dir int, cfg Config) (float64, float64) {
	target := float64(dir) * cfg.PaddleSpeed
	vel += (target - vel) * cfg.PaddleAccel
	y += vel
	if y > cfg.PaddleLimit {
		y = cfg.PaddleLimit
	} else if y < -cfg.PaddleLimit {
		y = -cfg.PaddleLimit
	}
	return y, vel
}

// MoveBall advances the ball one tick and resolves wall bounces, paddle
// reflections and goals. It returns the side that conceded a goal this tick
// ("" when no goal). rng feeds the serve after a goal.
func MoveBall(st *SimulationState, cfg Config, rng *rand.Rand) Side {
	st.BallX += st.BallVX
	st.BallY += st.BallVY

	// Top/bottom wall bounce.
	if st.BallY > cfg.HalfHeight {
		st.BallY = cfg.HalfHeight
		st.BallVY = -st.BallVY
	} else if st.BallY < -cfg.HalfHeight {
		st.BallY = -cfg.HalfHeight
		st.BallVY = -st.BallVY
	}

	plane := cfg.HalfWidth - cfg.PaddleInset
	if st.BallVX < 0 && st.BallX <= -plane {
		if hitsPaddle(st.BallY, st.P1Y, cfg) {
			reflect(st, st.P1Y, cfg)
			st.BallX = -plane
		} else {
			st.ScoreR++
			serve(st, rng)
			return SideLeft
		}
	} else if st.BallVX > 0 && st.BallX >= plane {
		if hitsPaddle(st.BallY, st.P2Y, cfg) {
			reflect(st, st.P2Y, cfg)
			st.BallX = plane
		} else {
			st.ScoreL++
			serve(st, rng)
			return SideRight
		}
	}

	// Keep the ball inside the field even right after a reflection.
	if st.BallX > cfg.HalfWidth {
		st.BallX = cfg.HalfWidth
	} else if st.BallX < -cfg.HalfWidth {
		st.BallX = -cfg.HalfWidth
	}
	return ""
}

// hitsPaddle reports whether the ball's Y lies within the defending
// paddle's half-extent. The exact edge counts as a hit.
func hitsPaddle(ballY, paddleY float64, cfg Config) bool {
	return math.Abs(ballY-paddleY) <= cfg.PaddleSize/2
}

// reflect bounces the ball off a paddle: the hit offset adds spin to the
// vertical speed and the horizontal speed is inverted and amplified.
func reflect(st *SimulationState, paddleY float64, cfg Config) {
	norm := (st.BallY - paddleY) / (cfg.PaddleSize / 2)
	if norm > 1 {
		norm = 1
	} else if norm < -1 {
		norm = -1
	}

	hspd := math.Abs(st.BallVX)
	st.BallVY += norm * SpinFactor
	vmax := SpinCapRatio * hspd
	if st.BallVY > vmax {
		st.BallVY = vmax
	} else if st.BallVY < -vmax {
		st.BallVY = -vmax
	}

	st.BallVX = -st.BallVX * BallSpeedup
	if st.BallVX > MaxBallSpeed {
		st.BallVX = MaxBallSpeed
	} else if st.BallVX < -MaxBallSpeed {
		st.BallVX = -MaxBallSpeed
	}
}

// serve recenters the ball and gives it a fresh serve velocity.
func serve(st *SimulationState, rng *rand.Rand) {
	st.BallX, st.BallY = 0, 0
	st.BallVX, st.BallVY = ResetBall(rng)
}

// ResetBall returns a serve velocity: constant magnitude ServeSpeed,
// horizontal direction uniform ±1, angle uniform in ±45° of travel.
func ResetBall(rng *rand.Rand) (vx, vy float64) {
	angle := (rng.Float64()*2 - 1) * serveAngleMax
	dir := 1.0
	if rng.Intn(2) == 0 {
		dir = -1.0
	}
	return math.Cos(angle) * ServeSpeed * dir, math.Sin(angle) * ServeSpeed
}
