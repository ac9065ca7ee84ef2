package sqlinline

// QSchema creates every table the gateway reads or writes. It is idempotent.
const QSchema = `--sql b8eb02db-1a9f-4baa-8ba4-c0b9ebd9c996
create extension if not exists pgcrypto;

create table if not exists users (
  id uuid primary key default gen_random_uuid(),
  email text not null unique,
  name text,
  password_hash text,
  role text not null default 'user' check (role in ('user', 'admin')),
  created_at timestamptz not null default now(),
  updated_at timestamptz not null default now()
);

create table if not exists operations (
  id uuid primary key default gen_random_uuid(),
  operation_id text not null unique,
  owner_id text,
  prompt text not null,
  status text not null check (status in ('pending', 'processing', 'completed', 'failed')),
  video_url text,
  image_url text,
  error_message text,
  aspect_ratio text,
  resolution text,
  created_at timestamptz not null default now(),
  updated_at timestamptz not null default now()
);

create index if not exists operations_owner_created_idx on operations (owner_id, created_at desc);

create table if not exists webhook_registrations (
  id uuid primary key default gen_random_uuid(),
  owner_id text not null,
  name text not null,
  url text not null,
  events text[] not null default '{}',
  active boolean not null default true,
  last_executed_at timestamptz,
  created_at timestamptz not null default now(),
  updated_at timestamptz not null default now()
);

create index if not exists webhook_registrations_owner_idx on webhook_registrations (owner_id);
`
