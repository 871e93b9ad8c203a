package db

import "strings"

// Times are unix seconds (BIGINT) as elsewhere in the schema; booleans use
// TRUE/FALSE literals understood by both dialects.
const schemaBody = `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'STUDENT',
  is_active BOOLEAN NOT NULL DEFAULT TRUE,
  email_verified BOOLEAN NOT NULL DEFAULT FALSE,
  verification_token TEXT,
  reset_token TEXT,
  reset_token_expires_at BIGINT,
  deleted_at BIGINT,
  created_at BIGINT NOT NULL,
  updated_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS ix_users_verification_token ON users (verification_token);
CREATE INDEX IF NOT EXISTS ix_users_reset_token ON users (reset_token);

CREATE TABLE IF NOT EXISTS device_sessions (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  fingerprint TEXT NOT NULL,
  device_name TEXT NOT NULL DEFAULT '',
  device_type TEXT NOT NULL DEFAULT '',
  browser TEXT NOT NULL DEFAULT '',
  ip_address TEXT NOT NULL DEFAULT '',
  refresh_token_hash TEXT NOT NULL,
  expires_at BIGINT NOT NULL,
  last_active_at BIGINT NOT NULL,
  is_active BOOLEAN NOT NULL DEFAULT TRUE,
  created_at BIGINT NOT NULL,
  UNIQUE (user_id, fingerprint)
);
CREATE UNIQUE INDEX IF NOT EXISTS ux_device_sessions_refresh ON device_sessions (refresh_token_hash);

CREATE TABLE IF NOT EXISTS courses (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS course_versions (
  id TEXT PRIMARY KEY,
  course_id TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
  version INTEGER NOT NULL,
  created_at BIGINT NOT NULL,
  UNIQUE (course_id, version)
);

CREATE TABLE IF NOT EXISTS chapters (
  id TEXT PRIMARY KEY,
  course_version_id TEXT NOT NULL REFERENCES course_versions(id) ON DELETE CASCADE,
  title TEXT NOT NULL,
  order_index INTEGER NOT NULL,
  video_duration_sec INTEGER NOT NULL DEFAULT 0,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS progress (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  chapter_id TEXT NOT NULL REFERENCES chapters(id) ON DELETE CASCADE,
  is_completed BOOLEAN NOT NULL DEFAULT FALSE,
  watch_percentage {{FLOAT}} NOT NULL DEFAULT 0,
  last_position_sec {{FLOAT}} NOT NULL DEFAULT 0,
  first_watch_completed BOOLEAN NOT NULL DEFAULT FALSE,
  can_skip_ahead BOOLEAN NOT NULL DEFAULT FALSE,
  completed_at BIGINT,
  updated_at BIGINT NOT NULL,
  UNIQUE (user_id, chapter_id)
);

CREATE TABLE IF NOT EXISTS quizzes (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  chapter_id TEXT REFERENCES chapters(id) ON DELETE SET NULL,
  content_block_id TEXT,
  course_version_id TEXT REFERENCES course_versions(id) ON DELETE SET NULL,
  is_template BOOLEAN NOT NULL DEFAULT FALSE,
  source_template_id TEXT,
  passing_score {{FLOAT}} NOT NULL DEFAULT 70,
  max_attempts INTEGER,
  time_limit_minutes INTEGER,
  prevent_tab_switch BOOLEAN NOT NULL DEFAULT FALSE,
  prevent_copy_paste BOOLEAN NOT NULL DEFAULT FALSE,
  randomize_questions BOOLEAN NOT NULL DEFAULT FALSE,
  randomize_answers BOOLEAN NOT NULL DEFAULT FALSE,
  show_correct_answers BOOLEAN NOT NULL DEFAULT TRUE,
  generate_certificate BOOLEAN NOT NULL DEFAULT FALSE,
  total_points {{FLOAT}} NOT NULL DEFAULT 0,
  created_at BIGINT NOT NULL,
  updated_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS quiz_questions (
  id TEXT PRIMARY KEY,
  quiz_id TEXT NOT NULL REFERENCES quizzes(id) ON DELETE CASCADE,
  type TEXT NOT NULL,
  text TEXT NOT NULL,
  explanation TEXT NOT NULL DEFAULT '',
  points {{FLOAT}} NOT NULL DEFAULT 1,
  order_index INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS ix_quiz_questions_quiz ON quiz_questions (quiz_id);

CREATE TABLE IF NOT EXISTS quiz_answers (
  id TEXT PRIMARY KEY,
  question_id TEXT NOT NULL REFERENCES quiz_questions(id) ON DELETE CASCADE,
  text TEXT NOT NULL,
  is_correct BOOLEAN NOT NULL DEFAULT FALSE,
  order_index INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS ix_quiz_answers_question ON quiz_answers (question_id);

CREATE TABLE IF NOT EXISTS quiz_attempts (
  id TEXT PRIMARY KEY,
  quiz_id TEXT NOT NULL REFERENCES quizzes(id) ON DELETE CASCADE,
  user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  attempt_number INTEGER NOT NULL,
  status TEXT NOT NULL,
  score {{FLOAT}} NOT NULL DEFAULT 0,
  passed BOOLEAN NOT NULL DEFAULT FALSE,
  total_points {{FLOAT}} NOT NULL DEFAULT 0,
  questions_answered INTEGER NOT NULL DEFAULT 0,
  started_at BIGINT NOT NULL,
  completed_at BIGINT,
  last_saved_at BIGINT,
  time_spent_sec INTEGER,
  time_remaining_sec INTEGER,
  tab_switch_count INTEGER NOT NULL DEFAULT 0,
  copy_paste_count INTEGER NOT NULL DEFAULT 0,
  violation_log TEXT NOT NULL DEFAULT '[]',
  auto_save_data TEXT NOT NULL DEFAULT '',
  review_question_ids TEXT NOT NULL DEFAULT '[]',
  UNIQUE (user_id, quiz_id, attempt_number)
);
CREATE UNIQUE INDEX IF NOT EXISTS ux_quiz_attempts_in_progress
  ON quiz_attempts (user_id, quiz_id) WHERE status = 'IN_PROGRESS';
CREATE INDEX IF NOT EXISTS ix_quiz_attempts_completed ON quiz_attempts (quiz_id, completed_at);

CREATE TABLE IF NOT EXISTS quiz_responses (
  id TEXT PRIMARY KEY,
  attempt_id TEXT NOT NULL REFERENCES quiz_attempts(id) ON DELETE CASCADE,
  question_id TEXT NOT NULL,
  selected_answer_ids TEXT NOT NULL,
  is_correct BOOLEAN NOT NULL DEFAULT FALSE,
  points_earned {{FLOAT}} NOT NULL DEFAULT 0,
  time_spent_sec INTEGER NOT NULL DEFAULT 0,
  answered_at BIGINT NOT NULL,
  UNIQUE (attempt_id, question_id)
);

CREATE TABLE IF NOT EXISTS quiz_analytics (
  id TEXT PRIMARY KEY,
  quiz_id TEXT NOT NULL REFERENCES quizzes(id) ON DELETE CASCADE,
  day TEXT NOT NULL,
  total_attempts INTEGER NOT NULL DEFAULT 0,
  completed_attempts INTEGER NOT NULL DEFAULT 0,
  average_score {{FLOAT}} NOT NULL DEFAULT 0,
  pass_rate {{FLOAT}} NOT NULL DEFAULT 0,
  average_time_sec {{FLOAT}} NOT NULL DEFAULT 0,
  updated_at BIGINT NOT NULL,
  UNIQUE (quiz_id, day)
);

CREATE TABLE IF NOT EXISTS certificates (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  course_id TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
  quiz_id TEXT NOT NULL,
  attempt_id TEXT NOT NULL,
  certificate_number TEXT NOT NULL UNIQUE,
  student_name TEXT NOT NULL,
  course_title TEXT NOT NULL,
  score {{FLOAT}} NOT NULL,
  completion_date BIGINT NOT NULL,
  issued_at BIGINT NOT NULL,
  updated_at BIGINT NOT NULL,
  UNIQUE (user_id, course_id)
);

CREATE TABLE IF NOT EXISTS event_log (
  seq {{SERIAL}},
  typ TEXT NOT NULL,
  event_key TEXT NOT NULL,
  data TEXT NOT NULL,
  created_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS ix_event_log_key ON event_log (event_key);
`

var (
	schemaSQLite = strings.NewReplacer(
		"{{FLOAT}}", "REAL",
		"{{SERIAL}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
	).Replace(schemaBody)

	schemaPostgres = strings.NewReplacer(
		"{{FLOAT}}", "DOUBLE PRECISION",
		"{{SERIAL}}", "BIGSERIAL PRIMARY KEY",
	).Replace(schemaBody)
)
