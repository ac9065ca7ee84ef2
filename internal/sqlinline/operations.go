package sqlinline

// QUpsertOperation creates or merges an operation keyed by operation_id.
// $10 lists the stored statuses the incoming status may replace; when the
// stored status is not among them only owner/aspect/resolution gaps are filled.
// A stored placeholder prompt ($11) yields to a real one.
const QUpsertOperation = `--sql 47ecdf3b-4468-4fea-a9b7-e2d7dc3352f4
insert into operations as o (
  id,
  operation_id,
  owner_id,
  prompt,
  status,
  video_url,
  image_url,
  error_message,
  aspect_ratio,
  resolution,
  created_at,
  updated_at
) values (
  gen_random_uuid(),
  $1::text,
  nullif($2::text, ''),
  coalesce(nullif($3::text, ''), $11::text),
  $4::text,
  nullif($5::text, ''),
  nullif($6::text, ''),
  case when $4::text = 'failed' then nullif($7::text, '') else null end,
  nullif($8::text, ''),
  nullif($9::text, ''),
  now(),
  now()
)
on conflict (operation_id) do update set
  owner_id = coalesce(o.owner_id, excluded.owner_id),
  prompt = case when o.prompt = $11::text and nullif($3::text, '') is not null then excluded.prompt else o.prompt end,
  status = case when o.status = any($10::text[]) then excluded.status else o.status end,
  video_url = case when o.status = any($10::text[]) then coalesce(excluded.video_url, o.video_url) else o.video_url end,
  image_url = case when o.status = any($10::text[]) then coalesce(excluded.image_url, o.image_url) else o.image_url end,
  error_message = case
    when not (o.status = any($10::text[])) then o.error_message
    when excluded.status = 'failed' then coalesce(excluded.error_message, o.error_message)
    else null
  end,
  aspect_ratio = coalesce(o.aspect_ratio, excluded.aspect_ratio),
  resolution = coalesce(o.resolution, excluded.resolution),
  updated_at = case
    when o.status = any($10::text[]) then now()
    when o.owner_id is null and excluded.owner_id is not null then now()
    when o.prompt = $11::text and nullif($3::text, '') is not null then now()
    else o.updated_at
  end
returning id, operation_id, owner_id, prompt, status, video_url, image_url, error_message, aspect_ratio, resolution, created_at, updated_at, (xmax = 0) as created;
`

const QSelectOperationByOperationID = `--sql e8b58159-de8a-4edb-a348-3e8914ad92a5
select id, operation_id, owner_id, prompt, status, video_url, image_url, error_message, aspect_ratio, resolution, created_at, updated_at
from operations
where operation_id = $1::text
limit 1;
`

const QListOperationsByOwner = `--sql fe091fdd-9b66-4656-a50e-46835553492f
select id, operation_id, owner_id, prompt, status, video_url, image_url, error_message, aspect_ratio, resolution, created_at, updated_at
from operations
where owner_id = $1::text
  and ($2::text = '' or status = $2::text)
order by created_at desc, operation_id desc
limit $3::int offset $4::int;
`

const QCountOperationsByOwner = `--sql 04d984f8-126d-44e9-b410-d04bdb80aba7
select count(*)
from operations
where owner_id = $1::text
  and ($2::text = '' or status = $2::text);
`

const QCountOperationsByStatus = `--sql 3e73253e-1898-4bfc-a4c3-698f72b96236
select status, count(*)
from operations
where owner_id = $1::text
group by status;
`

const QSelectLatestOperationByOwner = `--sql 45f77ffa-7d92-40bc-95fe-cd293945035e
select id, operation_id, owner_id, prompt, status, video_url, image_url, error_message, aspect_ratio, resolution, created_at, updated_at
from operations
where owner_id = $1::text
order by created_at desc, operation_id desc
limit 1;
`
