package sqlinline

const QSelectUserByID = `--sql b8c26ac1-5466-4db1-bab7-938f67ae75f9
select id, email, coalesce(name, ''), role, created_at, updated_at
from users
where id = $1::uuid
limit 1;
`

const QSelectUserByEmail = `--sql 018cab93-41f9-48bf-a296-eb3f78e11bdc
select id, email, coalesce(name, ''), role, created_at, updated_at
from users
where lower(email) = lower($1::text)
limit 1;
`

const QUpdateUserRole = `--sql 7c19568a-2d8f-4d5f-bd26-01874230bc0a
update users
set role = $2::text,
    updated_at = now()
where id = $1::uuid
returning id, email, coalesce(name, ''), role, created_at, updated_at;
`

const QEnsureUser = `--sql 3f0d6a52-9c4e-4a8b-a1f7-5e2b6d8c0a13
insert into users (email, name, role)
values ($1::text, nullif($2::text, ''), $3::text)
on conflict (email) do update
set role = excluded.role,
    updated_at = now()
returning id;
`
