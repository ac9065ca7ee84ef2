package sqlinline

const QListWebhooks = `--sql 32a0575b-c2a2-48ee-bf32-a8143e7faf0c
select id, owner_id, name, url, events, active, last_executed_at, created_at, updated_at
from webhook_registrations
where ($1::text = '' or owner_id = $1::text)
order by created_at desc;
`

const QSelectWebhookByID = `--sql 74e416c8-5a5d-4b1b-8ed8-7a4d378957ba
select id, owner_id, name, url, events, active, last_executed_at, created_at, updated_at
from webhook_registrations
where id = $1::uuid
limit 1;
`

const QInsertWebhook = `--sql c11c5447-3d75-4fea-b067-29d1b86ea082
insert into webhook_registrations(id, owner_id, name, url, events, active, created_at, updated_at)
values (gen_random_uuid(), $1::text, $2::text, $3::text, coalesce($4::text[], '{}'::text[]), $5::boolean, now(), now())
returning id, owner_id, name, url, events, active, last_executed_at, created_at, updated_at;
`

const QUpdateWebhook = `--sql 82b2ee85-2f11-4ae2-88f8-208fa80c8795
update webhook_registrations
set name = $2::text,
    url = $3::text,
    events = coalesce($4::text[], '{}'::text[]),
    active = $5::boolean,
    updated_at = now()
where id = $1::uuid
returning id, owner_id, name, url, events, active, last_executed_at, created_at, updated_at;
`

const QDeleteWebhook = `--sql 73b1c910-34ee-446b-8678-e01070a516f7
delete from webhook_registrations
where id = $1::uuid;
`

const QMarkWebhooksExecuted = `--sql 9f8d495c-fa61-4d9b-ac4f-6f0a4f256002
update webhook_registrations
set last_executed_at = $2::timestamptz,
    updated_at = now()
where active
  and $1::text = any(events);
`
